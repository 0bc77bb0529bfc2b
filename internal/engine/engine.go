// Package engine is the SQL front door (C12, spec.md §4.12): it wires
// the lexer/parser/analyzer/optimizer/codegen/VM pipeline behind a
// single Process/ProcessWithDetails entry point, grounded on
// src/sql_processor.py's process_sql dispatch (classify → analyze →
// (optimize+codegen+exec | direct storage call)) and shaped after the
// teacher's internal/apply.Applier: one orchestrating struct composing
// the sub-components, exposing options via a config struct rather than
// constructor parameters.
package engine

import (
	"reldb/internal/ast"
	"reldb/internal/catalog"
	"reldb/internal/codegen"
	"reldb/internal/errs"
	"reldb/internal/lexer"
	"reldb/internal/optimizer"
	"reldb/internal/parser"
	"reldb/internal/semantic"
	"reldb/internal/storage"
	"reldb/internal/value"
	"reldb/internal/vm"
)

// Options configures an Engine. DataDir and BufferPoolCapacity mirror
// storage.Config; Optimize toggles whether complex SELECTs are run
// through internal/optimizer before codegen (on by default).
type Options struct {
	DataDir            string
	BufferPoolCapacity int
	Policy             storage.ReplacementPolicy
	Optimize           bool
}

// Engine is the top-level orchestrator: one SQL statement in, one
// Result out, composing the parser, semantic analyzer, optimizer,
// code generator and execution engine behind a single call.
type Engine struct {
	facade   *storage.Facade
	catalog  *catalog.Catalog
	optimize bool

	txActive bool
	txSnap   *storage.Snapshot
}

// Open creates or reopens an Engine backed by a persisted database
// directory, per SPEC_FULL.md §6's catalog.toml + pages/ layout.
func Open(opts Options) (*Engine, error) {
	if opts.BufferPoolCapacity <= 0 {
		opts.BufferPoolCapacity = 64
	}
	facade, err := storage.NewFacade(storage.Config{
		BufferPoolCapacity: opts.BufferPoolCapacity,
		Policy:             opts.Policy,
		DataDir:            opts.DataDir,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{facade: facade, catalog: facade.Catalog, optimize: opts.Optimize}, nil
}

// Row is one output row: an ordered-by-iteration column-name→value
// mapping (spec.md §6's "rows for SELECT are an ordered sequence of
// column-name→value mappings").
type Row = vm.Row

// Details is the process_with_details payload spec.md §6 names:
// pipeline sizes alongside the outcome, used by the shell and exec CLI
// commands.
type Details struct {
	Success           bool
	Message           string
	Columns           []string
	Rows              []Row
	TokenCount        int
	QuadrupleCount    int
	InstructionCount  int
	OptimizerStats    *optimizer.Stats
	Err               error
}

// Process runs one SQL statement to completion and reports
// (success, rows, error) per spec.md §6's process contract.
func (e *Engine) Process(sql string) (bool, []Row, error) {
	d := e.ProcessWithDetails(sql)
	return d.Success, d.Rows, d.Err
}

// ProcessWithDetails runs sql and additionally reports token,
// quadruple and instruction counts plus optimizer statistics,
// per spec.md §6's process_with_details contract.
func (e *Engine) ProcessWithDetails(sql string) *Details {
	toks, lexErr := lexer.All(sql)
	tokenCount := len(toks)
	if lexErr != nil {
		return &Details{Success: false, Err: lexErr, TokenCount: tokenCount}
	}

	stmt, err := parser.Parse(sql)
	if err != nil {
		return &Details{Success: false, Err: err, TokenCount: tokenCount}
	}

	switch stmt.Kind {
	case ast.KindBegin:
		return e.processBegin()
	case ast.KindCommit:
		return e.processCommit()
	case ast.KindRollback:
		return e.processRollback()
	}

	if stmt.Select != nil {
		return e.processSelect(stmt.Select, tokenCount)
	}
	return e.processDdlDml(stmt, tokenCount)
}

func (e *Engine) processSelect(sel *ast.SelectStmt, tokenCount int) *Details {
	quads, err := semantic.AnalyzeSelect(sel, e.catalog)
	if err != nil {
		return &Details{Success: false, Err: err, TokenCount: tokenCount}
	}

	var stats *optimizer.Stats
	// Simple SELECTs (no JOIN/GROUP BY/aggregate/ORDER BY/LIMIT) skip the
	// optimizer pass entirely, per spec.md §4.12's "narrower pipeline".
	if sel.IsComplex() && e.optimize {
		optimized, s := optimizer.Optimize(quads, e.catalog)
		quads, stats = optimized, &s
	}

	prog, err := codegen.Generate(quads)
	if err != nil {
		return &Details{Success: false, Err: err, TokenCount: tokenCount, QuadrupleCount: len(quads)}
	}

	res, err := vm.Execute(prog, e.facade, e.catalog)
	if err != nil {
		return &Details{Success: false, Err: err, TokenCount: tokenCount, QuadrupleCount: len(quads), InstructionCount: len(prog.Instructions)}
	}

	return &Details{
		Success:          true,
		Message:          res.Message,
		Columns:          res.Columns,
		Rows:             res.Rows,
		TokenCount:       tokenCount,
		QuadrupleCount:   len(quads),
		InstructionCount: len(prog.Instructions),
		OptimizerStats:   stats,
	}
}

func (e *Engine) processDdlDml(stmt *ast.Stmt, tokenCount int) *Details {
	quads, err := semantic.AnalyzeDDLDML(stmt, e.catalog)
	if err != nil {
		return &Details{Success: false, Err: err, TokenCount: tokenCount}
	}
	prog, err := codegen.Generate(quads)
	if err != nil {
		return &Details{Success: false, Err: err, TokenCount: tokenCount, QuadrupleCount: len(quads)}
	}
	res, err := vm.Execute(prog, e.facade, e.catalog)
	if err != nil {
		return &Details{Success: false, Err: err, TokenCount: tokenCount, QuadrupleCount: len(quads), InstructionCount: len(prog.Instructions)}
	}
	return &Details{
		Success:          true,
		Message:          res.Message,
		Rows:             []Row{{"message": value.Str(res.Message)}},
		TokenCount:       tokenCount,
		QuadrupleCount:   len(quads),
		InstructionCount: len(prog.Instructions),
	}
}

// processBegin snapshots the current table pages and record counts in
// memory. Nested BEGINs are rejected rather than silently stacked, per
// SPEC_FULL.md §4's "recognized but not durable" transaction surface:
// there is no nested-transaction model to fall back to.
func (e *Engine) processBegin() *Details {
	if e.txActive {
		return &Details{Success: false, Err: errs.NewSemantic(errs.TypeMismatch, "transaction already in progress")}
	}
	snap, err := e.facade.Snapshot()
	if err != nil {
		return &Details{Success: false, Err: err}
	}
	e.txSnap = snap
	e.txActive = true
	return &Details{Success: true, Message: "transaction started"}
}

// processCommit discards the snapshot and flushes dirty state to disk.
func (e *Engine) processCommit() *Details {
	if !e.txActive {
		return &Details{Success: false, Err: errs.NewSemantic(errs.TypeMismatch, "no transaction in progress")}
	}
	e.txActive = false
	e.txSnap = nil
	if err := e.facade.FlushAll(); err != nil {
		return &Details{Success: false, Err: err}
	}
	return &Details{Success: true, Message: "transaction committed"}
}

// processRollback restores the BEGIN-time snapshot. No redo/undo log
// backs this, matching spec.md §9's Non-goal on WAL-based recovery: the
// snapshot lives in memory only. Pages the buffer pool evicted since
// BEGIN went to the in-memory page store that Restore replaces, so
// their row changes are undone too; catalog changes are not.
func (e *Engine) processRollback() *Details {
	if !e.txActive {
		return &Details{Success: false, Err: errs.NewSemantic(errs.TypeMismatch, "no transaction in progress")}
	}
	snap := e.txSnap
	e.txActive = false
	e.txSnap = nil
	if err := e.facade.Restore(snap); err != nil {
		return &Details{Success: false, Err: err}
	}
	return &Details{Success: true, Message: "transaction rolled back"}
}

// Close flushes every dirty page and the catalog to disk.
func (e *Engine) Close() error {
	return e.facade.FlushAll()
}

// Catalog exposes the live catalog for callers that need table listings
// or schema introspection without reaching into storage directly.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Facade exposes the storage facade for callers needing direct
// index-vs-scan performance comparisons (the bench CLI command).
func (e *Engine) Facade() *storage.Facade { return e.facade }

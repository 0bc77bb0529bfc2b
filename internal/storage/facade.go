package storage

import (
	"strings"
	"time"

	"reldb/internal/catalog"
	"reldb/internal/errs"
	"reldb/internal/value"
)

// Facade is C5: the single entry point C10's VM (and the CLI's "bench"
// command) drive instead of reaching into TableManager/BufferPool/BTree
// directly, grounded on original_source/src/storage/storage_engine.py's
// facade surface.
type Facade struct {
	Catalog *catalog.Catalog
	mgr     *TableManager
	dataDir string
}

// Config bundles the buffer pool sizing spec.md §4.2 asks the storage
// layer to expose, kept small enough to embed directly or be filled
// from internal/config's TOML-decoded engine config.
type Config struct {
	BufferPoolCapacity int
	Policy             ReplacementPolicy
	DataDir            string
}

func NewFacade(cfg Config) (*Facade, error) {
	cat, err := LoadCatalog(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	mgr := NewTableManager(cat, cfg.BufferPoolCapacity, cfg.Policy)
	if err := LoadPages(mgr, cat, cfg.DataDir); err != nil {
		return nil, err
	}
	return &Facade{Catalog: cat, mgr: mgr, dataDir: cfg.DataDir}, nil
}

func (f *Facade) CreateTable(name string, columns []*catalog.Column) error {
	return f.mgr.CreateTable(name, columns)
}

func (f *Facade) DropTable(name string) error { return f.mgr.DropTable(name) }

func (f *Facade) AddColumn(table string, col *catalog.Column) error {
	return f.mgr.AddColumn(table, col)
}

func (f *Facade) CreateIndex(name, table string, columns []string, unique bool) error {
	return f.mgr.CreateIndex(name, table, columns, unique)
}

func (f *Facade) DropIndex(name string) { f.mgr.DropIndex(name) }

func (f *Facade) Insert(table string, row Row) (RowID, error) { return f.mgr.Insert(table, row) }

func (f *Facade) Update(table string, rid RowID, row Row) error {
	return f.mgr.Update(table, rid, row)
}

func (f *Facade) Delete(table string, rid RowID) error { return f.mgr.Delete(table, rid) }

func (f *Facade) Get(table string, rid RowID) (Row, error) { return f.mgr.Get(table, rid) }

// Select performs a full-table scan; the VM's SCAN instruction always
// reads tables through it.
func (f *Facade) Select(table string) ([]RowID, []Row, error) { return f.mgr.Scan(table) }

// SelectByIndex performs an index-assisted equality lookup, used by
// SelectWithPerformance; the VM does not call it.
func (f *Facade) SelectByIndex(indexName string, key value.Value) ([]RowID, []Row, error) {
	bt, ok := f.mgr.Index(indexName)
	if !ok {
		return nil, nil, errs.NewStorage(errs.CatalogCorrupt, "index %q does not exist", indexName)
	}
	rids := bt.SearchExact(key)
	rows := make([]Row, 0, len(rids))
	for _, rid := range rids {
		row, err := f.mgr.Get(bt.Table, rid)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return rids, rows, nil
}

// PerformanceResult carries the scan-vs-index timing comparison spec.md
// §4.5's "select_with_performance" operation reports, surfaced by the
// CLI's "bench" command.
type PerformanceResult struct {
	Rows          []Row
	ScanDuration  time.Duration
	IndexDuration time.Duration
	UsedIndex     bool
	Stats         BufferPoolStats
}

// SelectWithPerformance runs both a full scan and (if an index exists on
// the given column) an index lookup for the same predicate, timing
// each, so a caller can see the gap index selection is meant to close.
func (f *Facade) SelectWithPerformance(table, column string, key value.Value) (*PerformanceResult, error) {
	result := &PerformanceResult{}

	scanStart := time.Now()
	_, rows, err := f.mgr.Scan(table)
	if err != nil {
		return nil, err
	}
	var matched []Row
	for _, r := range rows {
		if v, ok := r[column]; ok && value.Equal(v, key) {
			matched = append(matched, r)
		}
	}
	result.ScanDuration = time.Since(scanStart)
	result.Rows = matched

	for _, idx := range f.mgr.indexes {
		if strings.EqualFold(idx.Table, table) && len(idx.Columns) == 1 && idx.Columns[0] == column {
			indexStart := time.Now()
			_, idxRows, err := f.SelectByIndex(idx.Name, key)
			if err != nil {
				continue
			}
			result.IndexDuration = time.Since(indexStart)
			result.UsedIndex = true
			result.Rows = idxRows
			break
		}
	}
	result.Stats = f.mgr.PoolStats(table)
	return result, nil
}

// FlushAll persists the catalog and every table's dirty pages to disk.
func (f *Facade) FlushAll() error {
	if err := SaveCatalog(f.Catalog, f.dataDir); err != nil {
		return err
	}
	return SavePages(f.mgr, f.Catalog, f.dataDir)
}

// Snapshot captures every table's current pages (dirty frames flushed
// to their serialized bytes, then byte-copied) and each table's record
// count, the in-memory
// checkpoint engine.Engine's BEGIN takes since no redo/undo log exists
// (spec.md §9's Non-goal, resolved per SPEC_FULL.md §9 as "recognized
// surface, in-memory-only rollback").
type Snapshot struct {
	pages        map[string]map[int][]byte
	recordCounts map[string]int
}

func (f *Facade) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{pages: map[string]map[int][]byte{}, recordCounts: map[string]int{}}
	for _, name := range f.Catalog.ListTables() {
		raw, err := f.mgr.RawPages(name)
		if err != nil {
			return nil, err
		}
		frozen := make(map[int][]byte, len(raw))
		for id, b := range raw {
			cp := make([]byte, len(b))
			copy(cp, b)
			frozen[id] = cp
		}
		snap.pages[name] = frozen
		if t, ok := f.Catalog.GetTable(name); ok {
			snap.recordCounts[name] = t.RecordCount
		}
	}
	return snap, nil
}

// Restore reinstalls every snapshotted table's page bytes, page list and
// record count from a prior Snapshot, discarding row writes made since
// it was taken, and rebuilds indexes to match. Catalog changes made
// since the snapshot (tables, columns, indexes) are not rolled back.
// Pages are reinstalled undecoded, same as LoadPages at startup: a page
// is only deserialized once something pins it again.
func (f *Facade) Restore(snap *Snapshot) error {
	for name, frozen := range snap.pages {
		raw := make(map[int][]byte, len(frozen))
		for id, b := range frozen {
			cp := make([]byte, len(b))
			copy(cp, b)
			raw[id] = cp
		}
		f.mgr.InstallRawPages(name, raw)
		if t, ok := f.Catalog.GetTable(name); ok {
			t.RecordCount = snap.recordCounts[name]
			// Drop pages allocated after the snapshot; their bytes are gone.
			kept := t.PageList[:0]
			for _, id := range t.PageList {
				if _, ok := raw[id]; ok {
					kept = append(kept, id)
				}
			}
			t.PageList = kept
		}
	}
	return f.mgr.RebuildIndexes()
}

func (f *Facade) ListTables() []string { return f.Catalog.ListTables() }

// TableInfo summarizes one table's schema and storage footprint, the
// shape spec.md §4.5's "get_table_info" operation returns.
type TableInfo struct {
	Name        string
	Columns     []*catalog.Column
	PrimaryKey  string
	PageCount   int
	RecordCount int
	Indexes     []string
}

func (f *Facade) GetTableInfo(name string) (*TableInfo, error) {
	t, ok := f.Catalog.GetTable(name)
	if !ok {
		return nil, errs.NewStorage(errs.CatalogCorrupt, "table %q does not exist", name)
	}
	info := &TableInfo{
		Name:        t.Name,
		Columns:     t.Columns,
		PrimaryKey:  t.PrimaryKey,
		PageCount:   len(t.PageList),
		RecordCount: t.RecordCount,
	}
	for _, idx := range f.Catalog.Indexes {
		if idx.Table == t.Name {
			info.Indexes = append(info.Indexes, idx.Name)
		}
	}
	return info, nil
}

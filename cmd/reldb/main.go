// Package main contains the cli implementation of the database engine.
// It uses the cobra package for cli tool implementation, grounded on
// cmd/smf/main.go's root-command-plus-subcommands shape and
// per-command flag struct pattern.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reldb/internal/config"
	"reldb/internal/engine"
	"reldb/internal/rowfmt"
	"reldb/internal/value"
)

type shellFlags struct {
	dataDir string
	config  string
	format  string
}

type execFlags struct {
	dataDir string
	config  string
	format  string
	file    string
}

type benchFlags struct {
	dataDir string
	config  string
	table   string
	column  string
	key     string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "reldb",
		Short: "A single-node relational database engine",
	}

	rootCmd.AddCommand(shellCmd())
	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(benchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func shellCmd() *cobra.Command {
	flags := &shellFlags{}
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive SQL shell",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runShell(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.dataDir, "data-dir", "d", "", "Database directory (overrides config)")
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "Path to reldb.toml config file")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format: table or json")
	return cmd
}

func execCmd() *cobra.Command {
	flags := &execFlags{}
	cmd := &cobra.Command{
		Use:   "exec <file.sql>",
		Short: "Run a SQL script file against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flags.file = args[0]
			return runExec(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.dataDir, "data-dir", "d", "", "Database directory (overrides config)")
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "Path to reldb.toml config file")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format: table or json")
	return cmd
}

func benchCmd() *cobra.Command {
	flags := &benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare a full scan against an index-assisted lookup",
		Long: `Bench runs the same equality predicate twice against a table, once as
a full scan and once (if a matching index exists) via the index, and reports
both durations and buffer-pool hit/miss statistics.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBench(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.dataDir, "data-dir", "d", "", "Database directory (overrides config)")
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "Path to reldb.toml config file")
	cmd.Flags().StringVarP(&flags.table, "table", "t", "", "Table name (required)")
	cmd.Flags().StringVar(&flags.column, "column", "", "Column to filter on (required)")
	cmd.Flags().StringVar(&flags.key, "value", "", "Equality value to search for (required)")
	return cmd
}

func loadConfig(path, dataDirOverride string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	return cfg, nil
}

func openEngine(cfg config.Config) (*engine.Engine, error) {
	return engine.Open(engine.Options{
		DataDir:            cfg.DataDir,
		BufferPoolCapacity: cfg.BufferPoolCapacity,
		Policy:             cfg.ReplacementPolicy,
		Optimize:           cfg.Optimize,
	})
}

func runShell(flags *shellFlags) error {
	cfg, err := loadConfig(flags.config, flags.dataDir)
	if err != nil {
		return err
	}
	if flags.format != "" {
		cfg.OutputFormat = flags.format
	}
	fmtr, err := rowfmt.NewFormatter(cfg.OutputFormat)
	if err != nil {
		return err
	}

	e, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("opening database at %q: %w", cfg.DataDir, err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush on exit: %v\n", err)
		}
	}()

	fmt.Printf("reldb shell — database at %q. Enter SQL statements terminated by ';'. Ctrl-D to exit.\n", cfg.DataDir)
	return runREPL(os.Stdin, os.Stdout, e, fmtr)
}

// runREPL accumulates input lines until a ';' terminates a statement,
// so a statement can span multiple lines at the prompt.
func runREPL(in *os.File, out *os.File, e *engine.Engine, fmtr rowfmt.Formatter) error {
	scanner := bufio.NewScanner(in)
	var buf strings.Builder
	fmt.Fprint(out, "reldb> ")
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if strings.Contains(line, ";") {
			execAndPrint(e, fmtr, out, strings.TrimSpace(buf.String()))
			buf.Reset()
			fmt.Fprint(out, "reldb> ")
			continue
		}
		fmt.Fprint(out, "   ... ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func execAndPrint(e *engine.Engine, fmtr rowfmt.Formatter, out *os.File, sql string) {
	if sql == "" {
		return
	}
	d := e.ProcessWithDetails(sql)
	if !d.Success {
		fmt.Fprintf(out, "error: %v\n", d.Err)
		return
	}
	printResult(out, fmtr, d)
}

func printResult(out *os.File, fmtr rowfmt.Formatter, d *engine.Details) {
	if len(d.Columns) > 0 || len(d.Rows) > 0 {
		text, err := fmtr.FormatRows(d.Columns, rows(d.Rows))
		if err != nil {
			fmt.Fprintf(out, "error formatting rows: %v\n", err)
			return
		}
		fmt.Fprint(out, text)
		return
	}
	text, err := fmtr.FormatStatus(d.Message)
	if err != nil {
		fmt.Fprintf(out, "error formatting status: %v\n", err)
		return
	}
	fmt.Fprint(out, text)
}

// rows converts []engine.Row ([]vm.Row) to []rowfmt.Row; both share the
// underlying map[string]value.Value type.
func rows(rs []engine.Row) []rowfmt.Row {
	out := make([]rowfmt.Row, len(rs))
	for i, r := range rs {
		out[i] = rowfmt.Row(r)
	}
	return out
}

func runExec(flags *execFlags) error {
	cfg, err := loadConfig(flags.config, flags.dataDir)
	if err != nil {
		return err
	}
	if flags.format != "" {
		cfg.OutputFormat = flags.format
	}
	fmtr, err := rowfmt.NewFormatter(cfg.OutputFormat)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(flags.file)
	if err != nil {
		return fmt.Errorf("reading %q: %w", flags.file, err)
	}

	e, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("opening database at %q: %w", cfg.DataDir, err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush on exit: %v\n", err)
		}
	}()

	failed := 0
	for _, stmt := range splitStatements(string(content)) {
		d := e.ProcessWithDetails(stmt)
		if !d.Success {
			fmt.Fprintf(os.Stderr, "error in statement %q: %v\n", stmt, d.Err)
			failed++
			continue
		}
		printResult(os.Stdout, fmtr, d)
	}
	if failed > 0 {
		return fmt.Errorf("%d statement(s) failed", failed)
	}
	return nil
}

// splitStatements breaks a script into ';'-terminated statements, the
// same separator the shell's line-accumulation loop uses.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		out = append(out, s+";")
	}
	return out
}

func runBench(flags *benchFlags) error {
	if flags.table == "" || flags.column == "" || flags.key == "" {
		return fmt.Errorf("--table, --column and --value are all required")
	}
	cfg, err := loadConfig(flags.config, flags.dataDir)
	if err != nil {
		return err
	}

	e, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("opening database at %q: %w", cfg.DataDir, err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush on exit: %v\n", err)
		}
	}()

	key := parseLiteral(flags.key)
	perf, err := e.Facade().SelectWithPerformance(flags.table, flags.column, key)
	if err != nil {
		return err
	}

	fmt.Printf("matched %d row(s)\n", len(perf.Rows))
	fmt.Printf("full scan:     %s\n", perf.ScanDuration)
	if perf.UsedIndex {
		fmt.Printf("index lookup:  %s\n", perf.IndexDuration)
		fmt.Printf("speedup:       %.1fx\n", ratio(perf.ScanDuration, perf.IndexDuration))
	} else {
		fmt.Println("index lookup:  no index on this column; scan path only")
	}
	fmt.Printf("buffer pool:   %d hit(s), %d miss(es), %d eviction(s)\n", perf.Stats.Hits, perf.Stats.Misses, perf.Stats.Evictions)
	return nil
}

func ratio(scan, index time.Duration) float64 {
	if index == 0 {
		return 0
	}
	return float64(scan) / float64(index)
}

// parseLiteral interprets a bench --value flag as an integer, float,
// boolean, or else a plain string, mirroring the literal coercion the
// parser applies to SQL literals.
func parseLiteral(s string) value.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Flt(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return value.Bool(b)
	}
	return value.Str(s)
}

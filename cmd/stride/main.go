package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stridekit/stride/pkg/debugger"
	"github.com/stridekit/stride/pkg/report"
	"github.com/stridekit/stride/pkg/runner"
	"github.com/stridekit/stride/pkg/script"
	"github.com/stridekit/stride/pkg/tree"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Test script execution engine",
	Long:  "stride — executes tree-structured test scripts with nested scopes, expected-failure classification, hooks, and an interactive debugger.",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [script.yaml]",
	Short: "Validate a script file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, errs := script.ValidateFile(args[0])
	printValidationWarnings(errs)
	if hasValidationErrors(errs) {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", countValidationErrors(errs))
		i := 0
		for _, e := range errs {
			if e.Severity == "warning" {
				continue
			}
			i++
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", countValidationErrors(errs))
	}
	fmt.Printf("✓ %s is valid (%d branches)\n", doc.Meta.Name, len(doc.Branches))
	return nil
}

func hasValidationErrors(errs []*script.ValidationError) bool {
	return countValidationErrors(errs) > 0
}

func countValidationErrors(errs []*script.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

func printValidationWarnings(errs []*script.ValidationError) {
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
			}
		}
	}
}

// --- run ---

var (
	runWorkers int
	runReport  string
	runTrace   string
	runVars    []string
)

var runCmd = &cobra.Command{
	Use:   "run [script.yaml]",
	Short: "Execute a script",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	doc, err := loadValidated(args[0])
	if err != nil {
		return err
	}

	t := tree.New(doc)
	rep, closeTrace, err := buildReporter(t)
	if err != nil {
		return err
	}
	defer closeTrace()

	run := runner.New(t, rep, runWorkers)
	if err := seedVars(run, doc, runVars); err != nil {
		return err
	}

	paused := run.Run(context.Background(), doc.Branches)
	rep.GenerateReport()

	snap := t.Serialize()
	fmt.Printf("%s: %d passed, %d failed, %d pending (of %d)\n",
		doc.Meta.Name, snap.Summary.Passed, snap.Summary.Failed, snap.Summary.Pending, snap.Summary.Total)
	if paused > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d worker(s) ended suspended on a breakpoint; run under 'stride debug' to step through\n", paused)
	}
	if snap.Summary.Failed > 0 || paused > 0 {
		os.Exit(1)
	}
	return nil
}

// --- debug ---

var debugVars []string

var debugCmd = &cobra.Command{
	Use:   "debug [script.yaml]",
	Short: "Launch the interactive debugger for a script",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebug,
}

func runDebug(cmd *cobra.Command, args []string) error {
	doc, err := loadValidated(args[0])
	if err != nil {
		return err
	}

	t := tree.New(doc)
	run := runner.New(t, report.Nop{}, 1)
	if err := seedVars(run, doc, debugVars); err != nil {
		return err
	}

	d := debugger.New(doc, run)
	return d.Run(context.Background())
}

// loadValidated runs the validation pipeline and refuses documents with
// errors; warnings are printed and tolerated.
func loadValidated(path string) (*script.Document, error) {
	doc, errs := script.ValidateFile(path)
	printValidationWarnings(errs)
	if hasValidationErrors(errs) {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n", countValidationErrors(errs))
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return nil, fmt.Errorf("script validation failed")
	}
	return doc, nil
}

// seedVars populates the persistent bag from meta.vars, then applies --var
// overrides on top.
func seedVars(run *runner.Runner, doc *script.Document, vars []string) error {
	for k, v := range doc.Meta.Vars {
		run.SetVar(k, v)
	}
	for _, v := range vars {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --var %q: expected key=value", v)
		}
		run.SetVar(parts[0], parts[1])
	}
	return nil
}

// buildReporter assembles the reporter stack from the --report and --trace
// flags: a YAML snapshot writer, a JSONL trace appender, both, or neither.
func buildReporter(src report.Source) (report.Reporter, func(), error) {
	var reps report.Multi
	closeTrace := func() {}

	if runReport != "" {
		reps = append(reps, report.NewWriter(src, runReport))
	}
	if runTrace != "" {
		tr, err := report.NewTrace(src, runTrace)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace: %w", err)
		}
		reps = append(reps, tr)
		closeTrace = func() {
			if err := tr.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: close trace: %v\n", err)
			}
		}
	}
	if len(reps) == 0 {
		return report.Nop{}, closeTrace, nil
	}
	return reps, closeTrace, nil
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := script.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stride %s (build: %s)\n", version, commit)
	},
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 1, "Number of concurrent execution instances")
	runCmd.Flags().StringVar(&runReport, "report", "", "Write a live YAML report to this path")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Append a JSONL trace of report refreshes to this path")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Set a persistent variable (key=value), repeatable")

	debugCmd.Flags().StringArrayVar(&debugVars, "var", nil, "Set a persistent variable (key=value), repeatable")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

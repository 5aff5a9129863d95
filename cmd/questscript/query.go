package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/questscript"
)

// --- Helpers ---

// openStore opens the Store from the --db flag path (or default).
func openStore() (*questscript.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'questscript index' first)", dbPath)
	}
	return questscript.OpenStore(dbPath)
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// parsePosition reads the <file> <line> <col> arguments.
func parsePosition(args []string) (string, int, int, error) {
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return "", 0, 0, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return "", 0, 0, err
	}
	return args[0], line, col, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func counted[T any](command string, results []T) CLIResult {
	n := len(results)
	return CLIResult{Command: command, Results: results, TotalCount: &n}
}

// --- Position-Based Commands ---

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the definition of the name used at a position",
	Long:  "Looks up the indexed definition of the name used at a position. Files are named by their indexed path; lines and columns are 0-based.",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	file, line, col, err := parsePosition(args)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	s, err := openStore()
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	defer s.Close()

	locs, err := questscript.NewQueryBuilder(s).DefinitionAt(file, line, col)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	return outputResult(cmd, counted("definition", locationsToCLI(locs)))
}

var usagesCmd = &cobra.Command{
	Use:   "usages <file> <line> <col>",
	Short: "Find every usage of the name defined at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runUsages,
}

func runUsages(cmd *cobra.Command, args []string) error {
	file, line, col, err := parsePosition(args)
	if err != nil {
		return outputError(cmd, "usages", err)
	}
	s, err := openStore()
	if err != nil {
		return outputError(cmd, "usages", err)
	}
	defer s.Close()

	locs, err := questscript.NewQueryBuilder(s).ReferencesTo(file, line, col)
	if err != nil {
		return outputError(cmd, "usages", err)
	}
	return outputResult(cmd, counted("usages", locationsToCLI(locs)))
}

// --- Index Listings ---

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics [file]",
	Short: "List indexed diagnostics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiagnostics,
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	defer s.Close()

	var file string
	if len(args) > 0 {
		file = args[0]
	}
	diags, err := questscript.NewQueryBuilder(s).Diagnostics(file)
	if err != nil {
		return outputError(cmd, "diagnostics", err)
	}
	return outputResult(cmd, counted("diagnostics", diagnosticsToCLI(diags)))
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError(cmd, "files", err)
	}
	defer s.Close()

	files, err := questscript.NewQueryBuilder(s).Files()
	if err != nil {
		return outputError(cmd, "files", err)
	}
	out := make([]CLIFile, 0, len(files))
	for _, f := range files {
		out = append(out, CLIFile{
			ID:          f.ID,
			Path:        f.Path,
			Hash:        f.Hash,
			DeclCount:   f.DeclCount,
			LastIndexed: f.LastIndexed.Format(time.RFC3339),
		})
	}
	return outputResult(cmd, counted("files", out))
}

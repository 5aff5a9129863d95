package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/questscript"
	"github.com/jward/questscript/ecs"
	"github.com/jward/questscript/scripts"
)

var (
	flagDB         string
	flagFormat     string
	flagScriptsDir string
	flagVerbose    bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "questscript",
	Short:         "Check, index and run game content scripts",
	Long:          "questscript loads serialized script syntax trees, reports diagnostics, answers definition and usage queries from a SQLite index, and runs script functions against a sample entity world.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .questscript/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagScriptsDir, "scripts-dir", "", "load Risor natives from disk path instead of embedded")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(spawnCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(usagesCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(filesCmd)
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a script directory for position queries",
	Long:  "Loads every syntax tree under path, analyzes and evaluates it, and writes definitions, usages and diagnostics to the SQLite database. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(findRepoRoot(targetDir))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Cleared database: %s\n", dbPath)
	}

	opts := append(engineOptions(cmd, ecs.NewWorld()), questscript.WithDatabase(dbPath))
	eng, err := questscript.New(opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	ctx := cmd.Context()
	if _, err := eng.LoadDirectory(ctx, targetDir); err != nil {
		return fmt.Errorf("loading: %w", err)
	}
	if err := eng.Index(ctx); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Indexed %d files from %s in %s\n",
		len(eng.Files()), targetDir, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.ErrOrStderr(), "Database: %s\n", dbPath)
	return nil
}

// engineOptions registers the sample world and the standard Risor natives.
// Script output and logs go to stderr so stdout stays machine readable.
func engineOptions(cmd *cobra.Command, w *ecs.World) []questscript.Option {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts := ecs.Options(w)
	opts = append(opts,
		questscript.WithLogger(logger),
		questscript.WithOutput(cmd.ErrOrStderr()),
		questscript.WithScriptNatives(scripts.Standard()...),
	)
	if flagScriptsDir != "" {
		opts = append(opts, questscript.WithScriptsDir(flagScriptsDir))
	} else {
		opts = append(opts, questscript.WithScriptsFS(scripts.FS))
	}
	return opts
}

// resolveTargetDir returns the absolute path of the directory to load.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".questscript", "index.db")
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/questscript"
	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/ecs"
)

var flagIsolated bool

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Report diagnostics for a script directory",
	Long:  "Loads every syntax tree under path as one program and reports redefinitions, unresolved names and unused definitions. With --isolated each file is analyzed on its own, in parallel, without evaluating anything.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&flagIsolated, "isolated", false, "analyze each file on its own without evaluation")
}

func runCheck(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "check", err)
	}

	var diags []questscript.Diagnostic
	if flagIsolated {
		diags, err = checkIsolated(cmd, targetDir)
	} else {
		diags, err = checkProgram(cmd, targetDir)
	}
	if err != nil {
		return outputError(cmd, "check", err)
	}
	if err := outputResult(cmd, counted("check", diagnosticsToCLI(diags))); err != nil {
		return err
	}

	var errs int
	for _, d := range diags {
		if d.Severity == "error" {
			errs++
		}
	}
	if errs > 0 {
		return fmt.Errorf("%d error(s) in %s", errs, targetDir)
	}
	return nil
}

func checkProgram(cmd *cobra.Command, dir string) ([]questscript.Diagnostic, error) {
	eng, err := questscript.New(engineOptions(cmd, ecs.NewWorld())...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()
	if _, err := eng.LoadDirectory(cmd.Context(), dir); err != nil {
		return nil, err
	}
	return eng.Diagnostics(""), nil
}

// checkIsolated persists its results when --db is given.
func checkIsolated(cmd *cobra.Command, dir string) ([]questscript.Diagnostic, error) {
	paths, err := questscript.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	files := make([]*ast.File, 0, len(paths))
	for _, p := range paths {
		f, err := questscript.DecodeFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	opts := engineOptions(cmd, ecs.NewWorld())
	if flagDB != "" {
		opts = append(opts, questscript.WithDatabase(resolveDBPath(findRepoRoot(dir))))
	}
	return questscript.CheckFiles(cmd.Context(), files, opts...)
}

var runCmd = &cobra.Command{
	Use:   "run <path> <function> [args...]",
	Short: "Load a script directory and call a function",
	Long:  "Loads every syntax tree under path and calls function. Arguments are JSON literals; anything that does not parse as JSON is passed as a string.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, err := loadProgram(cmd, args[0], ecs.NewWorld())
	if err != nil {
		return outputError(cmd, "run", err)
	}
	defer eng.Close()

	callArgs := make([]any, 0, len(args)-2)
	for _, a := range args[2:] {
		callArgs = append(callArgs, parseValue(a))
	}
	result, err := eng.Call(cmd.Context(), args[1], callArgs...)
	if err != nil {
		return outputError(cmd, "run", err)
	}
	return outputResult(cmd, CLIResult{Command: "run", Results: result})
}

var spawnCmd = &cobra.Command{
	Use:   "spawn <path> <prototype>",
	Short: "Instantiate a prototype into the sample entity world",
	Args:  cobra.ExactArgs(2),
	RunE:  runSpawn,
}

func runSpawn(cmd *cobra.Command, args []string) error {
	world := ecs.NewWorld()
	eng, err := loadProgram(cmd, args[0], world)
	if err != nil {
		return outputError(cmd, "spawn", err)
	}
	defer eng.Close()

	e, err := ecs.Spawn(cmd.Context(), eng, world, args[1])
	if err != nil {
		return outputError(cmd, "spawn", err)
	}
	return outputResult(cmd, CLIResult{Command: "spawn", Results: entityToCLI(e)})
}

func loadProgram(cmd *cobra.Command, path string, w *ecs.World) (*questscript.Engine, error) {
	dir, err := resolveTargetDir([]string{path})
	if err != nil {
		return nil, err
	}
	eng, err := questscript.New(engineOptions(cmd, w)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	if _, err := eng.LoadDirectory(cmd.Context(), dir); err != nil {
		eng.Close()
		return nil, err
	}
	return eng, nil
}

// parseValue turns a command line argument into a host value. Integers
// stay int64 so they match int parameters.
func parseValue(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return normalize(v)
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
	}
	return v
}

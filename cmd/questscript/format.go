package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatDiagnosticsText formats diagnostics compiler-style, one per line,
// with the related location indented below.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", d.File, d.StartLine, d.StartCol, d.Severity, d.Message)
		if d.Related != nil {
			fmt.Fprintf(w, "  see %s:%d:%d\n", d.Related.File, d.Related.StartLine, d.Related.StartCol)
		}
	}
}

func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tDECLS\tINDEXED")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", f.ID, f.Path, f.DeclCount, f.LastIndexed)
	}
	tw.Flush()
}

func formatEntityText(w io.Writer, e CLIEntity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", e.ID)
	fmt.Fprintf(tw, "NAME\t%s\n", e.Name)
	fmt.Fprintf(tw, "FACTION\t%s\n", e.Faction)
	if len(e.Tags) > 0 {
		fmt.Fprintf(tw, "TAGS\t%s\n", strings.Join(e.Tags, ", "))
	}
	if e.Position != nil {
		fmt.Fprintf(tw, "POSITION\t%d,%d\n", e.Position.X, e.Position.Y)
	}
	if e.Velocity != nil {
		fmt.Fprintf(tw, "VELOCITY\t%d,%d\n", e.Velocity.DX, e.Velocity.DY)
	}
	if e.Health != nil {
		fmt.Fprintf(tw, "HEALTH\t%d/%d\n", e.Health.Current, e.Health.Max)
	}
	if e.Loot != nil {
		fmt.Fprintf(tw, "LOOT\t%d gold %s\n", e.Loot.Gold, strings.Join(e.Loot.Items, ", "))
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLIEntity:
		formatEntityText(w, v)
	case nil:
		// No output for nil results (e.g., a function returning none).
	default:
		fmt.Fprintln(w, v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

package main

import (
	"github.com/jward/questscript"
	"github.com/jward/questscript/ecs"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly source range.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	CLILocation
	Kind     string       `json:"kind"`
	Severity string       `json:"severity"`
	Name     string       `json:"name"`
	Message  string       `json:"message"`
	Related  *CLILocation `json:"related,omitempty"`
}

// CLIFile is a JSON-friendly indexed file.
type CLIFile struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Hash        string `json:"hash"`
	DeclCount   int    `json:"decl_count"`
	LastIndexed string `json:"last_indexed"`
}

// CLIEntity is a spawned entity without its script callback.
type CLIEntity struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Faction     string        `json:"faction"`
	Tags        []string      `json:"tags,omitempty"`
	Position    *ecs.Position `json:"position,omitempty"`
	Velocity    *ecs.Velocity `json:"velocity,omitempty"`
	Health      *CLIHealth    `json:"health,omitempty"`
	Loot        *ecs.Loot     `json:"loot,omitempty"`
	Interactive bool          `json:"interactive"`
}

type CLIHealth struct {
	Current int64 `json:"current"`
	Max     int64 `json:"max"`
}

func locationToCLI(loc questscript.Location) CLILocation {
	r := loc.Range
	return CLILocation{
		File:      loc.File,
		StartLine: r.Start.Line,
		StartCol:  r.Start.Col,
		EndLine:   r.End.Line,
		EndCol:    r.End.Col,
	}
}

func locationsToCLI(locs []questscript.Location) []CLILocation {
	out := make([]CLILocation, 0, len(locs))
	for _, l := range locs {
		out = append(out, locationToCLI(l))
	}
	return out
}

func diagnosticsToCLI(diags []questscript.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, 0, len(diags))
	for _, d := range diags {
		cd := CLIDiagnostic{
			CLILocation: locationToCLI(d.Location),
			Kind:        string(d.Kind),
			Severity:    string(d.Severity),
			Name:        d.Name,
			Message:     d.Message,
		}
		if d.Related != nil {
			rel := locationToCLI(*d.Related)
			cd.Related = &rel
		}
		out = append(out, cd)
	}
	return out
}

func entityToCLI(e *ecs.Entity) CLIEntity {
	ce := CLIEntity{
		ID:          e.ID.String(),
		Name:        e.Name,
		Faction:     e.Faction,
		Tags:        e.Tags,
		Position:    e.Position,
		Velocity:    e.Velocity,
		Loot:        e.Loot,
		Interactive: e.OnInteract != nil,
	}
	if e.Health != nil {
		ce.Health = &CLIHealth{Current: e.Health.Current, Max: e.Health.Max}
	}
	return ce
}

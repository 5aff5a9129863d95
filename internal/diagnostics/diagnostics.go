// Package diagnostics collects definition and usage ranges during analysis
// and answers read-only queries over them: redefinition, unresolved and
// unused reports, plus definition/usage lookup by position.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/scope"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindRedefinition Kind = "redefinition"
	KindUnresolved   Kind = "unresolved"
	KindUnused       Kind = "unused"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Location is a range inside a file.
type Location struct {
	File  string    `json:"file"`
	Range ast.Range `json:"range"`
}

// Less orders locations by file path, then line, then column.
func (l Location) Less(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	if l.Range.Start != o.Range.Start {
		return l.Range.Start.Before(o.Range.Start)
	}
	return l.Range.End.Before(o.Range.End)
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Range.Start.Line, l.Range.Start.Col)
}

// Diagnostic is one report.
type Diagnostic struct {
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Name     string    `json:"name"`
	Message  string    `json:"message"`
	Location Location  `json:"location"`
	Related  *Location `json:"related,omitempty"`
}

type entry struct {
	name string
	sym  *scope.Symbol
	loc  Location
}

// Collector accumulates the range tables and analysis-phase problems of a
// program. Analysis writes to it; everything else only reads.
type Collector struct {
	defs     []entry
	uses     []entry
	problems []Diagnostic
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Define records the definition range of sym.
func (c *Collector) Define(sym *scope.Symbol) {
	c.defs = append(c.defs, entry{name: sym.Name, sym: sym, loc: Location{File: sym.File, Range: sym.Range}})
}

// Use records an occurrence of sym at rng in file.
func (c *Collector) Use(sym *scope.Symbol, file string, rng ast.Range) {
	c.uses = append(c.uses, entry{name: sym.Name, sym: sym, loc: Location{File: file, Range: rng}})
}

// Redefinition records a rejected second binding of name. first is the
// symbol that kept the binding.
func (c *Collector) Redefinition(name, file string, rng ast.Range, first *scope.Symbol) {
	d := Diagnostic{
		Kind:     KindRedefinition,
		Severity: SeverityError,
		Name:     name,
		Message:  fmt.Sprintf("%s redefined", name),
		Location: Location{File: file, Range: rng},
	}
	if first != nil && first.File != "" {
		d.Related = &Location{File: first.File, Range: first.Range}
	}
	c.problems = append(c.problems, d)
}

// Unresolved records a usage with no visible definition. what names the
// kind of thing looked up ("identifier", "member", "type").
func (c *Collector) Unresolved(what, name, file string, rng ast.Range) {
	c.problems = append(c.problems, Diagnostic{
		Kind:     KindUnresolved,
		Severity: SeverityError,
		Name:     name,
		Message:  fmt.Sprintf("unresolved %s %s", what, name),
		Location: Location{File: file, Range: rng},
	})
}

// DropFile forgets everything recorded in file, and every usage of symbols
// defined in file, so the file can be analyzed again.
func (c *Collector) DropFile(file string) {
	keep := func(es []entry) []entry {
		out := es[:0]
		for _, e := range es {
			if e.loc.File == file || e.sym.File == file {
				continue
			}
			out = append(out, e)
		}
		return out
	}
	c.defs = keep(c.defs)
	c.uses = keep(c.uses)
	problems := c.problems[:0]
	for _, p := range c.problems {
		if p.Location.File != file {
			problems = append(problems, p)
		}
	}
	c.problems = problems
}

// Dependents returns the files, other than file, holding usages of symbols
// defined in file or redefinitions of names file bound first.
func (c *Collector) Dependents(file string) []string {
	seen := map[string]bool{file: true}
	var out []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, u := range c.uses {
		if u.sym.File == file {
			add(u.loc.File)
		}
	}
	for _, p := range c.problems {
		if p.Kind == KindRedefinition && p.Related != nil && p.Related.File == file {
			add(p.Location.File)
		}
	}
	sort.Strings(out)
	return out
}

// Awaiting returns the files, other than file, with unresolved usages of
// any of names.
func (c *Collector) Awaiting(file string, names map[string]bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.problems {
		f := p.Location.File
		if p.Kind == KindUnresolved && f != file && names[p.Name] && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Definitions returns every recorded definition location.
func (c *Collector) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	for i, d := range c.defs {
		out[i] = Definition{Name: d.name, Kind: d.sym.Kind.String(), Type: typeString(d.sym), Location: d.loc, Symbol: d.sym}
	}
	return out
}

// Usages returns every recorded usage location.
func (c *Collector) Usages() []Usage {
	out := make([]Usage, len(c.uses))
	for i, u := range c.uses {
		out[i] = Usage{Name: u.name, Location: u.loc, Symbol: u.sym}
	}
	return out
}

// Definition is an exported view of a definition entry.
type Definition struct {
	Name     string
	Kind     string
	Type     string
	Location Location
	Symbol   *scope.Symbol
}

// Usage is an exported view of a usage entry.
type Usage struct {
	Name     string
	Location Location
	Symbol   *scope.Symbol
}

func typeString(sym *scope.Symbol) string {
	if sym.Type == nil {
		return ""
	}
	return sym.Type.String()
}

// unusedKinds are reported when never referenced. Prototypes and objects
// are entry points for the host.
var unusedKinds = map[scope.Kind]bool{
	scope.KindFunction:  true,
	scope.KindVariable:  true,
	scope.KindParameter: true,
}

// Report returns all diagnostics, optionally restricted to one file, sorted
// by file, line and column.
func (c *Collector) Report(file string) []Diagnostic {
	var out []Diagnostic
	for _, p := range c.problems {
		if file == "" || p.Location.File == file {
			out = append(out, p)
		}
	}
	used := make(map[*scope.Symbol]bool, len(c.uses))
	for _, u := range c.uses {
		used[u.sym] = true
	}
	for _, d := range c.defs {
		if file != "" && d.loc.File != file {
			continue
		}
		if !unusedKinds[d.sym.Kind] || used[d.sym] {
			continue
		}
		out = append(out, Diagnostic{
			Kind:     KindUnused,
			Severity: SeverityWarning,
			Name:     d.name,
			Message:  fmt.Sprintf("%s %s is never used", d.sym.Kind, d.name),
			Location: d.loc,
		})
	}
	Sort(out)
	return out
}

// Sort orders diagnostics by location, then kind.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].Location, ds[j].Location
		if a != b {
			return a.Less(b)
		}
		return ds[i].Kind < ds[j].Kind
	})
}

// DefinitionOf finds the usage range containing pos and returns the
// definition recorded first for the symbol it resolved to.
func (c *Collector) DefinitionOf(file string, pos ast.Position) (Location, bool) {
	for _, u := range c.uses {
		if u.loc.File != file || !u.loc.Range.Contains(pos) {
			continue
		}
		for _, d := range c.defs {
			if d.sym == u.sym {
				return d.loc, true
			}
		}
		return Location{}, false
	}
	return Location{}, false
}

// UsagesOf finds the definition range containing pos and returns every
// usage recorded for that symbol, sorted.
func (c *Collector) UsagesOf(file string, pos ast.Position) ([]Location, bool) {
	for _, d := range c.defs {
		if d.loc.File != file || !d.loc.Range.Contains(pos) {
			continue
		}
		var out []Location
		for _, u := range c.uses {
			if u.sym == d.sym {
				out = append(out, u.loc)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
		return out, true
	}
	return nil, false
}

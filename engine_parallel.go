package questscript

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/diagnostics"
	"github.com/jward/questscript/internal/scope"
	"github.com/jward/questscript/internal/store"
)

// Index persists the definitions, usages and diagnostics of every loaded
// file into the store. Files whose syntax tree hash is unchanged are
// skipped; files with usages resolving into a changed file are re-indexed
// with it. All writes land in one transaction.
func (e *Engine) Index(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	log := e.logger.With("component", "index")

	changed := make(map[string]bool)
	for _, path := range e.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		hash, err := store.ContentHash(e.files[path])
		if err != nil {
			return fmt.Errorf("questscript: index %s: %w", path, err)
		}
		existing, err := e.store.FileByPath(path)
		if err != nil {
			return fmt.Errorf("questscript: index %s: %w", path, err)
		}
		if existing != nil && existing.Hash == hash {
			continue
		}
		changed[path] = true
		radius, err := e.store.BlastRadius(path)
		if err != nil {
			return fmt.Errorf("questscript: index %s: %w", path, err)
		}
		for _, p := range radius {
			if _, loaded := e.files[p]; loaded {
				changed[p] = true
			}
		}
	}
	if len(changed) == 0 {
		log.Debug("index up to date")
		return nil
	}

	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	batch := store.NewBatchedStore(e.store)
	if err := e.writeIndex(batch, paths); err != nil {
		return err
	}
	if err := e.store.CommitBatch(batch); err != nil {
		return fmt.Errorf("questscript: index: %w", err)
	}
	log.Info("indexed", "files", len(paths))
	return nil
}

// writeIndex records the files named in paths into ds. Usages of symbols
// defined in files outside paths are linked to the definitions already in
// the store.
func (e *Engine) writeIndex(ds store.DataStore, paths []string) error {
	fileIDs := make(map[string]int64, len(paths))
	for _, p := range paths {
		f := e.files[p]
		hash, err := store.ContentHash(f)
		if err != nil {
			return fmt.Errorf("questscript: index %s: %w", p, err)
		}
		id, err := ds.InsertFile(&store.File{Path: p, Hash: hash, DeclCount: len(f.Decls), LastIndexed: time.Now()})
		if err != nil {
			return fmt.Errorf("questscript: index %s: %w", p, err)
		}
		fileIDs[p] = id
	}

	defIDs := make(map[*scope.Symbol]int64)
	for _, d := range e.coll.Definitions() {
		fid, ok := fileIDs[d.Location.File]
		if !ok {
			continue
		}
		r := d.Location.Range
		id, err := ds.InsertDefinition(&store.Definition{
			FileID: fid, Name: d.Name, Kind: d.Kind, Type: d.Type,
			StartLine: r.Start.Line, StartCol: r.Start.Col, EndLine: r.End.Line, EndCol: r.End.Col,
		})
		if err != nil {
			return fmt.Errorf("questscript: index %s: %w", d.Location.File, err)
		}
		defIDs[d.Symbol] = id
	}

	for _, u := range e.coll.Usages() {
		fid, ok := fileIDs[u.Location.File]
		if !ok {
			continue
		}
		r := u.Location.Range
		usage := &store.Usage{
			FileID: fid, Name: u.Name,
			StartLine: r.Start.Line, StartCol: r.Start.Col, EndLine: r.End.Line, EndCol: r.End.Col,
		}
		if id, ok := defIDs[u.Symbol]; ok {
			usage.DefinitionID = &id
		} else if u.Symbol.File != "" {
			id, err := linkDefinition(ds, u.Symbol)
			if err != nil {
				return fmt.Errorf("questscript: index %s: %w", u.Location.File, err)
			}
			usage.DefinitionID = id
		}
		if _, err := ds.InsertUsage(usage); err != nil {
			return fmt.Errorf("questscript: index %s: %w", u.Location.File, err)
		}
	}

	for _, d := range e.coll.Report("") {
		fid, ok := fileIDs[d.Location.File]
		if !ok {
			continue
		}
		if _, err := ds.InsertDiagnostic(toStoreDiagnostic(fid, d)); err != nil {
			return fmt.Errorf("questscript: index %s: %w", d.Location.File, err)
		}
	}
	return nil
}

func linkDefinition(ds store.DataStore, sym *scope.Symbol) (*int64, error) {
	f, err := ds.FileByPath(sym.File)
	if err != nil || f == nil {
		return nil, err
	}
	d, err := ds.DefinitionAtStart(f.ID, sym.Name, sym.Range.Start.Line, sym.Range.Start.Col)
	if err != nil || d == nil {
		return nil, err
	}
	return &d.ID, nil
}

func toStoreDiagnostic(fileID int64, d Diagnostic) *store.Diagnostic {
	r := d.Location.Range
	sd := &store.Diagnostic{
		FileID: fileID, Kind: string(d.Kind), Severity: string(d.Severity), Name: d.Name, Message: d.Message,
		StartLine: r.Start.Line, StartCol: r.Start.Col, EndLine: r.End.Line, EndCol: r.End.Col,
	}
	if d.Related != nil {
		sd.RelatedPath = d.Related.File
		sd.RelatedLine = d.Related.Range.Start.Line
		sd.RelatedCol = d.Related.Range.Start.Col
	}
	return sd
}

type checkResult struct {
	diags []Diagnostic
	batch *store.BatchedStore
}

// CheckFiles analyzes files in parallel, each in isolation with its own
// Engine built from opts, and returns all diagnostics sorted by location.
// Nothing is evaluated. When opts configure a store, the results are
// committed to it in a single transaction after all workers finish.
func CheckFiles(ctx context.Context, files []*ast.File, opts ...Option) ([]Diagnostic, error) {
	cfg := newConfig(opts)
	shared := cfg.store
	if shared == nil && cfg.dbPath != "" {
		s, err := OpenStore(cfg.dbPath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		shared = s
	}
	workerOpts := append(append([]Option(nil), opts...), WithStore(shared))

	results := make([]checkResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.parallelism)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			eng, err := New(workerOpts...)
			if err != nil {
				return err
			}
			defer eng.Close()
			if _, err := eng.analyze(f); err != nil {
				return err
			}
			res := checkResult{diags: eng.Diagnostics(f.Path)}
			if shared != nil {
				res.batch = store.NewBatchedStore(shared)
				if err := eng.writeIndex(res.batch, []string{f.Path}); err != nil {
					return err
				}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Diagnostic
	for _, r := range results {
		all = append(all, r.diags...)
	}
	diagnostics.Sort(all)

	if shared != nil {
		batch := store.NewBatchedStore(shared)
		for _, r := range results {
			batch.Merge(r.batch)
		}
		if err := shared.CommitBatch(batch); err != nil {
			return all, fmt.Errorf("questscript: check: %w", err)
		}
		cfg.logger.Info("checked", "files", len(files), "diagnostics", len(all))
	}
	return all, nil
}

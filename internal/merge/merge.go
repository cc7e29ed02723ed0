// Package merge combines the libraries produced by the logic loader into the
// final master libraries of a build.
package merge

import (
	"context"
	"sort"

	"github.com/specialistvlad/kernlib/internal/arch"
	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/library"
	"github.com/specialistvlad/kernlib/internal/logic"
)

// Match locates a merged solution in the logic file it was loaded from.
type Match struct {
	Source     string `yaml:"source" msgpack:"source"`
	LocalIndex int    `yaml:"localIndex" msgpack:"localIndex"`
}

// MatchTable maps a global solution index to its origin.
type MatchTable map[int]Match

// Result is the outcome of a merge.
type Result struct {
	// Masters holds one library per architecture in separated mode, or the
	// single full library otherwise. Order is deterministic for a given
	// arrival order.
	Masters []*library.MasterLibrary
	// Solutions is the deduplicated set of solution configurations reachable
	// from Masters, in discovery order.
	Solutions []*library.Solution
	// Indices holds the lowest global index each configuration received.
	Indices map[*library.Solution]int
	Matches MatchTable
}

// Engine merges loaded libraries one at a time. It is not safe for
// concurrent use; callers fan in loader results before handing them over.
type Engine struct {
	cfg *config.Build

	next    int
	full    *library.MasterLibrary
	byArch  map[string]*library.MasterLibrary
	order   []string
	matches MatchTable
	pending []logic.Loaded
}

// NewEngine creates an empty engine for one build.
func NewEngine(cfg *config.Build) *Engine {
	return &Engine{
		cfg:     cfg,
		full:    library.New(""),
		byArch:  make(map[string]*library.MasterLibrary),
		matches: make(MatchTable),
	}
}

// Run drains in and returns the merged result. It stops early when ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Build, in <-chan logic.Loaded) (*Result, error) {
	e := NewEngine(cfg)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case l, ok := <-in:
			if !ok {
				return e.Finish(ctx), nil
			}
			e.Add(ctx, l)
		}
	}
}

// Add absorbs one loaded library. Libraries without an architecture are
// skipped.
func (e *Engine) Add(ctx context.Context, l logic.Loaded) {
	if l.Architecture == "" || l.Library == nil {
		ctxlog.FromContext(ctx).Debug("Skipping library without architecture.", "file", l.Source)
		return
	}
	if e.cfg.StableSolutionOrder {
		e.pending = append(e.pending, l)
		return
	}
	e.apply(ctx, l)
}

func (e *Engine) apply(ctx context.Context, l logic.Loaded) {
	type origin struct {
		record *library.Record
		local  int
	}
	var origins []origin
	l.Library.Walk(func(_ string, r *library.Record) {
		origins = append(origins, origin{record: r, local: r.Index})
	})

	dst := e.full
	if e.cfg.Separated() {
		var ok bool
		if dst, ok = e.byArch[l.Architecture]; !ok {
			dst = library.New(l.Architecture)
			dst.Version = l.Library.Version
			e.byArch[l.Architecture] = dst
			e.order = append(e.order, l.Architecture)
		}
	} else if dst.Version == "" {
		dst.Version = l.Library.Version
	}
	e.next = dst.Merge(l.Library, e.next)

	for _, o := range origins {
		e.matches[o.record.Index] = Match{Source: l.Source, LocalIndex: o.local}
	}
	ctxlog.FromContext(ctx).Debug("Merged library.", "file", l.Source, "arch", l.Architecture, "count", len(origins), "next", e.next)
}

// Finish redistributes the fallback library and collects the final
// solution set. The engine must not be used afterwards.
func (e *Engine) Finish(ctx context.Context) *Result {
	if len(e.pending) > 0 {
		sort.SliceStable(e.pending, func(i, j int) bool { return e.pending[i].Source < e.pending[j].Source })
		for _, l := range e.pending {
			e.apply(ctx, l)
		}
		e.pending = nil
	}

	res := &Result{Matches: e.matches}
	if !e.cfg.Separated() {
		res.Masters = []*library.MasterLibrary{e.full}
	} else {
		e.redistributeFallback(ctx)
		for _, name := range e.order {
			res.Masters = append(res.Masters, e.byArch[name])
		}
	}
	res.Solutions, res.Indices = collect(res.Masters, e.cfg.LazyLibraryLoading)
	return res
}

func (e *Engine) redistributeFallback(ctx context.Context) {
	fb, ok := e.byArch[arch.Fallback]
	if !ok {
		return
	}
	logger := ctxlog.FromContext(ctx)

	kept := e.order[:0]
	for _, name := range e.order {
		if name == arch.Fallback {
			continue
		}
		kept = append(kept, name)
		e.next = e.byArch[name].Merge(fb.Clone(), e.next)
		logger.Debug("Merged fallback library.", "arch", name, "count", fb.Len())
	}
	e.order = kept
	delete(e.byArch, arch.Fallback)
}

// collect returns the distinct solution configurations of masters. In lazy
// mode every kernel is tagged with the lazy library that owns it.
func collect(masters []*library.MasterLibrary, lazy bool) ([]*library.Solution, map[*library.Solution]int) {
	indices := make(map[*library.Solution]int)
	var out []*library.Solution
	for _, m := range masters {
		m.Walk(func(lazyName string, r *library.Record) {
			if lazy && lazyName != "" {
				for _, k := range r.Original.Kernels {
					k.CodeObjectFile = lazyName
				}
			}
			idx, seen := indices[r.Original]
			if !seen {
				out = append(out, r.Original)
			}
			if !seen || r.Index < idx {
				indices[r.Original] = r.Index
			}
		})
	}
	return out, indices
}

// Prune drops every record whose configuration is in removed from all
// master libraries, the match table and the solution set. It returns the number of
// records dropped.
func (r *Result) Prune(removed map[*library.Solution]bool) int {
	if len(removed) == 0 {
		return 0
	}
	n := 0
	for _, m := range r.Masters {
		n += m.Remove(func(rec *library.Record) bool {
			if !removed[rec.Original] {
				return false
			}
			delete(r.Matches, rec.Index)
			return true
		})
	}
	kept := r.Solutions[:0]
	for _, s := range r.Solutions {
		if !removed[s] {
			kept = append(kept, s)
		}
	}
	r.Solutions = kept
	for s := range removed {
		delete(r.Indices, s)
	}
	return n
}

// Package progress reports build progress to the log and, optionally, to a
// socket.io dashboard.
package progress

import (
	"context"
	"errors"

	"github.com/specialistvlad/kernlib/internal/ctxlog"
)

// Stages of a build, in order.
const (
	StageLoad      = "load"
	StageMerge     = "merge"
	StagePlan      = "plan"
	StageGenerate  = "generate"
	StageCompile   = "compile"
	StageReconcile = "reconcile"
	StageMetadata  = "metadata"
	StageDone      = "done"
)

// Event is one progress update.
type Event struct {
	Stage  string `json:"stage"`
	Kernel string `json:"kernel,omitempty"`
	Done   int    `json:"done,omitempty"`
	Total  int    `json:"total,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

func (e Event) fields() map[string]any {
	m := map[string]any{"stage": e.Stage}
	if e.Kernel != "" {
		m["kernel"] = e.Kernel
	}
	if e.Total > 0 {
		m["done"] = e.Done
		m["total"] = e.Total
	}
	if e.Failed {
		m["failed"] = true
	}
	return m
}

// Reporter receives progress events. Report may be called from several
// goroutines at once.
type Reporter interface {
	Report(ctx context.Context, e Event)
	Close() error
}

// Log writes events to the context logger. Stage transitions are logged at
// info level, per-kernel events at debug level.
type Log struct{}

func (Log) Report(ctx context.Context, e Event) {
	logger := ctxlog.FromContext(ctx)
	switch {
	case e.Failed:
		logger.Warn("Build progress.", "stage", e.Stage, "kernel", e.Kernel, "failed", true)
	case e.Kernel != "":
		logger.Debug("Build progress.", "stage", e.Stage, "kernel", e.Kernel, "done", e.Done, "total", e.Total)
	default:
		logger.Info("Build stage.", "stage", e.Stage, "total", e.Total)
	}
}

func (Log) Close() error { return nil }

// Multi fans events out to several reporters.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, e Event) {
	for _, r := range m {
		r.Report(ctx, e)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

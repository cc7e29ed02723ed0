package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Report(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Close() error { return r.err }

func TestLog_Report(t *testing.T) {
	var buf testutil.SafeBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	Log{}.Report(ctx, Event{Stage: StageGenerate, Total: 4})
	Log{}.Report(ctx, Event{Stage: StageGenerate, Kernel: "K0", Done: 1, Total: 4})
	Log{}.Report(ctx, Event{Stage: StageGenerate, Kernel: "K1", Failed: true})

	out := buf.String()
	assert.Contains(t, out, "level=INFO msg=\"Build stage.\" stage=generate total=4")
	assert.Contains(t, out, "level=DEBUG msg=\"Build progress.\" stage=generate kernel=K0 done=1 total=4")
	assert.Contains(t, out, "level=WARN msg=\"Build progress.\" stage=generate kernel=K1 failed=true")
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{err: errors.New("close failed")}
	m := Multi{a, b}

	m.Report(context.Background(), Event{Stage: StageDone})

	assert.Equal(t, []Event{{Stage: StageDone}}, a.events)
	assert.Equal(t, a.events, b.events)
	assert.ErrorContains(t, m.Close(), "close failed")
}

func TestEvent_Fields(t *testing.T) {
	assert.Equal(t, map[string]any{"stage": "load"}, Event{Stage: StageLoad}.fields())
	assert.Equal(t,
		map[string]any{"stage": "generate", "kernel": "K", "done": 2, "total": 3, "failed": true},
		Event{Stage: StageGenerate, Kernel: "K", Done: 2, Total: 3, Failed: true}.fields())
}

func TestDialSocketIO_Errors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("missing host", func(t *testing.T) {
		_, err := DialSocketIO(ctx, SocketIOOptions{URL: "/socket.io/"})
		assert.ErrorContains(t, err, "must include scheme and host")
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := DialSocketIO(ctx, SocketIOOptions{URL: "http://127.0.0.1:1/socket.io/", Timeout: 300 * time.Millisecond})
		require.Error(t, err)
	})
}

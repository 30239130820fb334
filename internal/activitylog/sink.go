// Package activitylog is the best-effort audit trail of agent actions.
//
// Recording never blocks the caller and never reports failure to it: writes
// are dispatched to background goroutines and errors are only logged.
package activitylog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edgealpha/artifact-agent/internal/store"
)

const defaultWriteTimeout = 10 * time.Second

type Entry struct {
	CreatedAt time.Time `json:"created_at"`

	OwnerID string `json:"owner_id"`
	AgentID string `json:"agent_id"`

	// ActionType is a short, stable identifier (e.g. "artifact_generated").
	ActionType  string `json:"action_type"`
	Description string `json:"description,omitempty"`

	// Metadata is a small, action-specific object (avoid secrets).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Sink accepts entries without blocking.
type Sink interface {
	Record(e Entry)
}

// Writer persists one entry synchronously.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

type Options struct {
	Logger *slog.Logger
	// WriteTimeout bounds each background write. If <= 0, a safe default is used.
	WriteTimeout time.Duration
}

// Dispatcher is a fire-and-forget Sink over one or more Writers.
type Dispatcher struct {
	log     *slog.Logger
	writers []Writer
	timeout time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewDispatcher(opts Options, writers ...Writer) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	ws := make([]Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			ws = append(ws, w)
		}
	}
	return &Dispatcher{log: logger, writers: ws, timeout: timeout}
}

func (d *Dispatcher) Record(e Entry) {
	if d == nil || len(d.writers) == 0 {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(len(d.writers))
	d.mu.Unlock()

	for _, w := range d.writers {
		go func(w Writer) {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.log.Warn("activity log writer panicked", "panic", r)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := w.Write(ctx, e); err != nil {
				d.log.Warn("activity log write failed", "action_type", e.ActionType, "owner_id", e.OwnerID, "error", err)
			}
		}(w)
	}
}

// Flush waits for in-flight writes or until ctx is done.
func (d *Dispatcher) Flush(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting entries, waits for in-flight writes, then closes
// writers that hold resources.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	if err := d.Flush(ctx); err != nil {
		return err
	}
	var errs []error
	for _, w := range d.writers {
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// StoreWriter appends entries to the agent_activity table.
type StoreWriter struct {
	store store.Store
}

func NewStoreWriter(s store.Store) *StoreWriter {
	return &StoreWriter{store: s}
}

func (w *StoreWriter) Write(ctx context.Context, e Entry) error {
	if w == nil || w.store == nil {
		return errors.New("activity store not initialized")
	}
	if strings.TrimSpace(e.OwnerID) == "" || strings.TrimSpace(e.ActionType) == "" {
		return errors.New("missing owner id or action type")
	}
	row := store.Row{
		store.ColUserID:  e.OwnerID,
		store.ColAgentID: e.AgentID,
		"action_type":    e.ActionType,
		"description":    e.Description,
		"metadata":       e.Metadata,
	}
	if e.Metadata == nil {
		row["metadata"] = map[string]any{}
	}
	if !e.CreatedAt.IsZero() {
		row[store.ColCreatedAt] = e.CreatedAt.UnixMilli()
	}
	_, err := w.store.Insert(ctx, store.TableActivity, row)
	return err
}

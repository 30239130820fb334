package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgealpha/artifact-agent/internal/activitylog"
	"github.com/edgealpha/artifact-agent/internal/completion"
	"github.com/edgealpha/artifact-agent/internal/deliverable"
	"github.com/edgealpha/artifact-agent/internal/scoring"
	"github.com/edgealpha/artifact-agent/internal/store"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "pipeline.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type generateCall struct {
	messages []completion.Message
	opts     completion.Options
}

// scriptedCompletion answers the extraction and synthesis passes separately,
// told apart by their token budgets.
type scriptedCompletion struct {
	extractOut string
	extractErr error
	synthOut   string
	synthErr   error
	onSynth    func()

	mu    sync.Mutex
	calls []generateCall
}

func (s *scriptedCompletion) Generate(_ context.Context, messages []completion.Message, opts completion.Options) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, generateCall{messages: messages, opts: opts})
	s.mu.Unlock()
	if opts.MaxTokens == extractMaxTokens {
		return s.extractOut, s.extractErr
	}
	if s.onSynth != nil {
		s.onSynth()
	}
	return s.synthOut, s.synthErr
}

func (s *scriptedCompletion) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedCompletion) call(i int) generateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

// spyStore counts writes per table and can inject failures or hooks.
type spyStore struct {
	store.Store

	failInsert map[string]error
	onInsert   func(table string)
	onCount    func(table string)

	mu      sync.Mutex
	inserts map[string]int
	counts  int
}

func newSpyStore(s store.Store) *spyStore {
	return &spyStore{Store: s, inserts: map[string]int{}, failInsert: map[string]error{}}
}

func (s *spyStore) Insert(ctx context.Context, table string, row store.Row) (string, error) {
	if s.onInsert != nil {
		s.onInsert(table)
	}
	if err := s.failInsert[table]; err != nil {
		return "", err
	}
	id, err := s.Store.Insert(ctx, table, row)
	if err == nil {
		s.mu.Lock()
		s.inserts[table]++
		s.mu.Unlock()
	}
	return id, err
}

func (s *spyStore) Count(ctx context.Context, table string, filters ...store.Filter) (int, error) {
	n, err := s.Store.Count(ctx, table, filters...)
	s.mu.Lock()
	s.counts++
	s.mu.Unlock()
	if s.onCount != nil {
		s.onCount(table)
	}
	return n, err
}

func (s *spyStore) totalInserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.inserts {
		total += n
	}
	return total
}

type recordingSink struct {
	mu      sync.Mutex
	entries []activitylog.Entry
}

func (r *recordingSink) Record(e activitylog.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type stubSignaler struct {
	result scoring.Result
	err    error

	mu     sync.Mutex
	calls  int
	ctxErr error
}

func (s *stubSignaler) Apply(ctx context.Context, _ string, _ deliverable.Type) (scoring.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.ctxErr = ctx.Err()
	return s.result, s.err
}

// barrier releases every waiter once parties have arrived.
type barrier struct {
	mu      sync.Mutex
	parties int
	arrived int
	ch      chan struct{}
}

func newBarrier(parties int) *barrier {
	return &barrier{parties: parties, ch: make(chan struct{})}
}

func (b *barrier) wait() {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.parties {
		close(b.ch)
	}
	b.mu.Unlock()
	select {
	case <-b.ch:
	case <-time.After(5 * time.Second):
	}
}

func baseRequest(t deliverable.Type, owner string) Request {
	return Request{
		AgentID:         "felix",
		DeliverableType: t,
		OwnerID:         owner,
		ConversationHistory: []ConversationTurn{
			{Role: TurnUser, Content: "We are a B2B SaaS for dental clinics. MRR is $10,000."},
			{Role: TurnAgent, Content: "Great. What is your monthly burn?"},
			{Role: TurnUser, Content: "About $25k, with 14 months of runway."},
		},
	}
}

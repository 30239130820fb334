package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/edgealpha/artifact-agent/internal/deliverable"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "artifacts.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDB_InsertSelectCount(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TableEvidence, EvidenceRecord{
		OwnerID:       "u1",
		Dimension:     deliverable.DimensionFinancial,
		EvidenceType:  "agent_artifact",
		DataValue:     "financial_summary",
		Title:         "Financial Summary built with AI advisor",
		Status:        "verified",
		PointsAwarded: 6,
		ReviewedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}.Row())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == "" {
		t.Fatalf("Insert returned empty id")
	}

	n, err := s.Count(ctx, TableEvidence, Eq(ColUserID, "u1"), Eq("evidence_type", "agent_artifact"), Eq("data_value", "financial_summary"))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count=%d, want 1", n)
	}
	n, err = s.Count(ctx, TableEvidence, Eq(ColUserID, "u2"))
	if err != nil {
		t.Fatalf("Count other owner: %v", err)
	}
	if n != 0 {
		t.Fatalf("Count other owner=%d, want 0", n)
	}

	row, ok, err := s.SelectOne(ctx, TableEvidence, Query{Filters: []Filter{Eq(ColID, id)}})
	if err != nil || !ok {
		t.Fatalf("SelectOne ok=%v err=%v", ok, err)
	}
	got := EvidenceFromRow(row)
	if got.PointsAwarded != 6 || got.Dimension != deliverable.DimensionFinancial || got.Status != "verified" {
		t.Fatalf("unexpected evidence: %+v", got)
	}
	if !got.ReviewedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("ReviewedAt=%v", got.ReviewedAt)
	}

	if _, ok, err := s.SelectOne(ctx, TableEvidence, Query{Filters: []Filter{Eq(ColID, "missing")}}); err != nil || ok {
		t.Fatalf("SelectOne missing ok=%v err=%v, want false,nil", ok, err)
	}
}

func TestDB_RejectsUnknownColumns(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, TableArtifacts, Row{"user_id": "u1", "bogus; DROP TABLE x": 1}); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("Insert unknown column err=%v, want ErrUnknownColumn", err)
	}
	if _, err := s.Count(ctx, "sqlite_master"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("Count unknown table err=%v, want ErrUnknownColumn", err)
	}
	if _, err := s.Select(ctx, TableArtifacts, Query{OrderBy: []Order{{Column: "nope"}}}); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("Select unknown order column err=%v, want ErrUnknownColumn", err)
	}
}

func TestDB_ArtifactRoundTripAndOwnership(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	ctx := context.Background()

	base := time.UnixMilli(1_760_000_000_000).UTC()
	for i, title := range []string{"first", "second"} {
		_, err := s.Insert(ctx, TableArtifacts, ArtifactRecord{
			OwnerID:         "u1",
			AgentID:         "felix",
			ConversationID:  "conv_1",
			DeliverableType: deliverable.FinancialSummary,
			Title:           title,
			Fields:          map[string]any{"title": title, "risks": []any{"churn"}},
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
		}.Row())
		if err != nil {
			t.Fatalf("Insert %s: %v", title, err)
		}
	}

	list, err := s.ListArtifacts(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len=%d, want 2", len(list))
	}
	if list[0].Title != "second" {
		t.Fatalf("newest first: got %q", list[0].Title)
	}
	want := map[string]any{"title": "second", "risks": []any{"churn"}}
	if diff := cmp.Diff(want, list[0].Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if list[0].DeliverableType != deliverable.FinancialSummary || list[0].ConversationID != "conv_1" {
		t.Fatalf("unexpected record: %+v", list[0])
	}

	got, err := s.GetArtifact(ctx, "u1", list[1].ID)
	if err != nil || got == nil {
		t.Fatalf("GetArtifact owner: %v %v", got, err)
	}
	other, err := s.GetArtifact(ctx, "u2", list[1].ID)
	if err != nil {
		t.Fatalf("GetArtifact other owner: %v", err)
	}
	if other != nil {
		t.Fatalf("GetArtifact leaked another owner's record")
	}
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "artifacts.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Insert(context.Background(), TableActivity, Row{ColUserID: "u1", ColAgentID: "patel", "action_type": "artifact_generated"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	got, err := s.ListActivity(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(got) != 1 || got[0].ActionType != "artifact_generated" {
		t.Fatalf("activity=%+v", got)
	}
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edgealpha/artifact-agent/internal/deliverable"
)

// ArtifactRecord is one persisted deliverable. Records are never updated.
type ArtifactRecord struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	AgentID         string           `json:"agent_id"`
	ConversationID  string           `json:"conversation_id,omitempty"`
	DeliverableType deliverable.Type `json:"type"`
	Title           string           `json:"title"`
	Fields          map[string]any   `json:"fields"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (r ArtifactRecord) Row() Row {
	row := Row{
		ColUserID:       r.OwnerID,
		ColAgentID:      r.AgentID,
		"artifact_type": r.DeliverableType,
		"title":         r.Title,
		"content":       r.Fields,
	}
	if r.Fields == nil {
		row["content"] = map[string]any{}
	}
	if strings.TrimSpace(r.ID) != "" {
		row[ColID] = r.ID
	}
	if strings.TrimSpace(r.ConversationID) != "" {
		row["conversation_id"] = r.ConversationID
	}
	if !r.CreatedAt.IsZero() {
		row[ColCreatedAt] = r.CreatedAt.UnixMilli()
	}
	return row
}

func ArtifactFromRow(row Row) (ArtifactRecord, error) {
	fields, err := decodeObject(rowString(row, "content"))
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("artifact %s content: %w", rowString(row, ColID), err)
	}
	return ArtifactRecord{
		ID:              rowString(row, ColID),
		OwnerID:         rowString(row, ColUserID),
		AgentID:         rowString(row, ColAgentID),
		ConversationID:  rowString(row, "conversation_id"),
		DeliverableType: deliverable.Type(rowString(row, "artifact_type")),
		Title:           rowString(row, "title"),
		Fields:          fields,
		CreatedAt:       time.UnixMilli(rowInt(row, ColCreatedAt)).UTC(),
	}, nil
}

// EvidenceRecord is an auto-verified proof credited to one score dimension.
type EvidenceRecord struct {
	ID            string                `json:"id"`
	OwnerID       string                `json:"owner_id"`
	Dimension     deliverable.Dimension `json:"dimension"`
	EvidenceType  string                `json:"evidence_type"`
	DataValue     string                `json:"data_value"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        string                `json:"status"`
	PointsAwarded int                   `json:"points_awarded"`
	ReviewedAt    time.Time             `json:"reviewed_at"`
}

func (r EvidenceRecord) Row() Row {
	row := Row{
		ColUserID:        r.OwnerID,
		"dimension":      string(r.Dimension),
		"evidence_type":  r.EvidenceType,
		"data_value":     r.DataValue,
		"title":          r.Title,
		"description":    r.Description,
		"status":         r.Status,
		"points_awarded": r.PointsAwarded,
	}
	if !r.ReviewedAt.IsZero() {
		row["reviewed_at"] = r.ReviewedAt
	}
	if strings.TrimSpace(r.ID) != "" {
		row[ColID] = r.ID
	}
	return row
}

func EvidenceFromRow(row Row) EvidenceRecord {
	rec := EvidenceRecord{
		ID:            rowString(row, ColID),
		OwnerID:       rowString(row, ColUserID),
		Dimension:     deliverable.Dimension(rowString(row, "dimension")),
		EvidenceType:  rowString(row, "evidence_type"),
		DataValue:     rowString(row, "data_value"),
		Title:         rowString(row, "title"),
		Description:   rowString(row, "description"),
		Status:        rowString(row, "status"),
		PointsAwarded: int(rowInt(row, "points_awarded")),
	}
	if ts, err := time.Parse(time.RFC3339Nano, rowString(row, "reviewed_at")); err == nil {
		rec.ReviewedAt = ts
	}
	return rec
}

// ActivityRecord is one audit-trail row.
type ActivityRecord struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	AgentID     string         `json:"agent_id"`
	ActionType  string         `json:"action_type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func ActivityFromRow(row Row) ActivityRecord {
	meta, _ := decodeObject(rowString(row, "metadata"))
	return ActivityRecord{
		ID:          rowString(row, ColID),
		OwnerID:     rowString(row, ColUserID),
		AgentID:     rowString(row, ColAgentID),
		ActionType:  rowString(row, "action_type"),
		Description: rowString(row, "description"),
		Metadata:    meta,
		CreatedAt:   time.UnixMilli(rowInt(row, ColCreatedAt)).UTC(),
	}
}

// ListArtifacts returns the owner's artifacts, newest first.
func (s *DB) ListArtifacts(ctx context.Context, ownerID string, limit int) ([]ArtifactRecord, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("missing owner id")
	}
	rows, err := s.Select(ctx, TableArtifacts, Query{
		Filters: []Filter{Eq(ColUserID, ownerID)},
		OrderBy: []Order{{Column: ColCreatedAt, Desc: true}, {Column: ColID, Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := ArtifactFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetArtifact returns the artifact only when it belongs to ownerID.
func (s *DB) GetArtifact(ctx context.Context, ownerID string, id string) (*ArtifactRecord, error) {
	ownerID = strings.TrimSpace(ownerID)
	id = strings.TrimSpace(id)
	if ownerID == "" || id == "" {
		return nil, errors.New("missing owner id or artifact id")
	}
	row, ok, err := s.SelectOne(ctx, TableArtifacts, Query{Filters: []Filter{Eq(ColID, id), Eq(ColUserID, ownerID)}})
	if err != nil || !ok {
		return nil, err
	}
	rec, err := ArtifactFromRow(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *DB) ListEvidence(ctx context.Context, ownerID string, limit int) ([]EvidenceRecord, error) {
	rows, err := s.Select(ctx, TableEvidence, Query{
		Filters: []Filter{Eq(ColUserID, strings.TrimSpace(ownerID))},
		OrderBy: []Order{{Column: ColCreatedAt, Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]EvidenceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, EvidenceFromRow(row))
	}
	return out, nil
}

func (s *DB) ListActivity(ctx context.Context, ownerID string, limit int) ([]ActivityRecord, error) {
	rows, err := s.Select(ctx, TableActivity, Query{
		Filters: []Filter{Eq(ColUserID, strings.TrimSpace(ownerID))},
		OrderBy: []Order{{Column: ColCreatedAt, Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ActivityRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ActivityFromRow(row))
	}
	return out, nil
}

func decodeObject(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// RowString reads a text column, tolerating NULL.
func RowString(row Row, col string) string { return rowString(row, col) }

// RowInt reads an integer column, tolerating NULL and numeric text.
func RowInt(row Row, col string) int64 { return rowInt(row, col) }

func rowString(row Row, col string) string {
	switch v := row[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func rowInt(row Row, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}

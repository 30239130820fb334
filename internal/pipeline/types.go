// Package pipeline turns an advisory conversation into a persisted deliverable.
//
// A run has two generation passes (fact extraction, then document synthesis)
// followed by an ordered chain of side effects. Only the passes can fail the
// run; every side effect after the artifact insert is best-effort.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edgealpha/artifact-agent/internal/deliverable"
	"github.com/edgealpha/artifact-agent/internal/scoring"
)

type TurnRole string

const (
	TurnUser  TurnRole = "user"
	TurnAgent TurnRole = "agent"
)

type ConversationTurn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// FactMap is the flat key/value context extracted from a conversation.
type FactMap map[string]any

// Document is the generated deliverable. Fields is always a JSON object.
type Document struct {
	Title  string         `json:"title"`
	Fields map[string]any `json:"fields"`
	// Typed is the schema view of Fields; nil when the model drifted from
	// the requested shape.
	Typed deliverable.Document `json:"-"`
}

type Request struct {
	AgentID             string             `json:"agentId"`
	ConversationHistory []ConversationTurn `json:"conversationHistory"`
	DeliverableType     deliverable.Type   `json:"deliverableType"`
	// OwnerID is the verified caller identity. Empty means an anonymous run:
	// the document is returned but nothing is persisted.
	OwnerID              string `json:"ownerId,omitempty"`
	ConversationThreadID string `json:"conversationThreadId,omitempty"`
}

// UnmarshalJSON also accepts artifactType, userId and conversationId.
func (r *Request) UnmarshalJSON(b []byte) error {
	type plain Request
	var in struct {
		plain
		ArtifactType   string `json:"artifactType"`
		UserID         string `json:"userId"`
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Request(in.plain)
	if r.DeliverableType == "" {
		r.DeliverableType = deliverable.Type(in.ArtifactType)
	}
	if r.OwnerID == "" {
		r.OwnerID = in.UserID
	}
	if r.ConversationThreadID == "" {
		r.ConversationThreadID = in.ConversationID
	}
	return nil
}

// Validate returns a normalized copy of r or an error wrapping ErrValidation.
func (r Request) Validate() (Request, error) {
	out := r
	out.AgentID = strings.TrimSpace(r.AgentID)
	out.OwnerID = strings.TrimSpace(r.OwnerID)
	out.ConversationThreadID = strings.TrimSpace(r.ConversationThreadID)

	if out.AgentID == "" || strings.TrimSpace(string(r.DeliverableType)) == "" {
		return Request{}, fmt.Errorf("%w: agentId and deliverableType are required", ErrValidation)
	}
	t, ok := deliverable.Parse(string(r.DeliverableType))
	if !ok {
		return Request{}, fmt.Errorf("%w: invalid deliverableType: %s", ErrValidation, r.DeliverableType)
	}
	out.DeliverableType = t

	if len(r.ConversationHistory) == 0 {
		return Request{}, fmt.Errorf("%w: conversationHistory is required", ErrValidation)
	}
	turns := make([]ConversationTurn, 0, len(r.ConversationHistory))
	for i, turn := range r.ConversationHistory {
		role, ok := normalizeRole(turn.Role)
		if !ok {
			return Request{}, fmt.Errorf("%w: conversationHistory[%d]: invalid role %q", ErrValidation, i, turn.Role)
		}
		turns = append(turns, ConversationTurn{Role: role, Content: turn.Content})
	}
	out.ConversationHistory = turns
	return out, nil
}

func normalizeRole(r TurnRole) (TurnRole, bool) {
	switch strings.ToLower(strings.TrimSpace(string(r))) {
	case "user", "founder":
		return TurnUser, true
	case "agent", "assistant":
		return TurnAgent, true
	default:
		return "", false
	}
}

// ArtifactView is the artifact as returned to the caller.
type ArtifactView struct {
	// ID is nil for anonymous runs and when the artifact could not be saved.
	ID     *string          `json:"id"`
	Type   deliverable.Type `json:"type"`
	Title  string           `json:"title"`
	Fields map[string]any   `json:"fields"`
}

type Response struct {
	Artifact    ArtifactView   `json:"artifact"`
	ScoreSignal scoring.Result `json:"scoreSignal"`
}

// State is a step of one run.
type State string

const (
	StateExtracting      State = "extracting"
	StateSynthesizing    State = "synthesizing"
	StateParsing         State = "parsing"
	StatePersisting      State = "persisting"
	StateSignalApplied   State = "signal_applied"
	StateEvidenceChecked State = "evidence_checked"
	StateLogged          State = "logged"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

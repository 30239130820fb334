package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edgealpha/artifact-agent/internal/deliverable"
	"github.com/edgealpha/artifact-agent/internal/store"
)

const (
	EvidenceTypeAgentArtifact = "agent_artifact"
	EvidenceStatusVerified    = "verified"
)

// EvidencePolicy writes at most one verified evidence row per
// (owner, agent_artifact, deliverable type).
//
// The check and the insert are separate statements with no transaction, so
// two concurrent runs can both observe zero rows and both insert.
type EvidencePolicy struct {
	store store.Store
	now   func() time.Time
}

func NewEvidencePolicy(s store.Store) *EvidencePolicy {
	return &EvidencePolicy{store: s, now: time.Now}
}

// Ensure reports whether a new evidence row was written.
func (e *EvidencePolicy) Ensure(ctx context.Context, ownerID string, t deliverable.Type) (bool, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return false, fmt.Errorf("missing owner id")
	}
	profile, ok := deliverable.Lookup(t)
	if !ok || profile.Dimension == "" {
		return false, nil
	}

	n, err := e.store.Count(ctx, store.TableEvidence,
		store.Eq(store.ColUserID, ownerID),
		store.Eq("evidence_type", EvidenceTypeAgentArtifact),
		store.Eq("data_value", string(t)),
	)
	if err != nil {
		return false, fmt.Errorf("count evidence: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	rec := store.EvidenceRecord{
		OwnerID:       ownerID,
		Dimension:     profile.Dimension,
		EvidenceType:  EvidenceTypeAgentArtifact,
		DataValue:     string(t),
		Title:         profile.Label + " built with AI advisor",
		Description:   "Auto-verified: you generated a " + profile.Label + " using the Edge Alpha agent network.",
		Status:        EvidenceStatusVerified,
		PointsAwarded: profile.EvidencePoints,
		ReviewedAt:    e.now().UTC(),
	}
	if _, err := e.store.Insert(ctx, store.TableEvidence, rec.Row()); err != nil {
		return false, fmt.Errorf("insert evidence: %w", err)
	}
	return true, nil
}

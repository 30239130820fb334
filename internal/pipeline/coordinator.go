package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/edgealpha/artifact-agent/internal/activitylog"
	"github.com/edgealpha/artifact-agent/internal/completion"
	"github.com/edgealpha/artifact-agent/internal/deliverable"
	"github.com/edgealpha/artifact-agent/internal/scoring"
	"github.com/edgealpha/artifact-agent/internal/store"
)

const (
	defaultPersistTimeout = 30 * time.Second

	ActionArtifactGenerated = "artifact_generated"
)

// ScoreSignaler applies the one-time score nudge for a generated deliverable.
type ScoreSignaler interface {
	Apply(ctx context.Context, ownerID string, t deliverable.Type) (scoring.Result, error)
}

type Options struct {
	Logger *slog.Logger

	Completion completion.Client
	Store      store.Store
	Signaler   ScoreSignaler
	Activity   activitylog.Sink

	// PersistTimeout bounds the side-effect chain, which runs detached from
	// the caller's cancellation. If <= 0, a safe default is used.
	PersistTimeout time.Duration

	// OnTransition, when set, observes every state the run enters.
	OnTransition func(State)
}

type Pipeline struct {
	log      *slog.Logger
	client   completion.Client
	store    store.Store
	signaler ScoreSignaler
	evidence *EvidencePolicy
	activity activitylog.Sink

	persistTimeout time.Duration
	onTransition   func(State)
}

func New(opts Options) (*Pipeline, error) {
	if opts.Completion == nil {
		return nil, errors.New("missing completion client")
	}
	if opts.Store == nil {
		return nil, errors.New("missing store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	signaler := opts.Signaler
	if signaler == nil {
		signaler = scoring.NewSignaler(opts.Store)
	}
	timeout := opts.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	return &Pipeline{
		log:            logger,
		client:         opts.Completion,
		store:          opts.Store,
		signaler:       signaler,
		evidence:       NewEvidencePolicy(opts.Store),
		activity:       opts.Activity,
		persistTimeout: timeout,
		onTransition:   opts.OnTransition,
	}, nil
}

func (p *Pipeline) enter(s State) {
	if p.onTransition != nil {
		p.onTransition(s)
	}
}

// Generate runs one request end to end. Errors wrap ErrValidation,
// ErrGenerationMalformed or ErrGenerationFailed; every failure from the
// artifact insert onward is logged and absorbed.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Response, error) {
	if p == nil {
		return nil, errors.New("pipeline not initialized")
	}
	req, err := req.Validate()
	if err != nil {
		return nil, err
	}
	t := req.DeliverableType
	log := p.log.With("agent_id", req.AgentID, "deliverable_type", t)
	started := time.Now()

	p.enter(StateExtracting)
	facts, err := p.extractContext(ctx, req.ConversationHistory, t)
	if err != nil {
		p.enter(StateFailed)
		return nil, err
	}

	p.enter(StateSynthesizing)
	raw, err := p.synthesize(ctx, facts, t)
	if err != nil {
		p.enter(StateFailed)
		log.Warn("synthesis failed", "error", err)
		return nil, err
	}

	p.enter(StateParsing)
	doc, err := p.parseDocument(raw, t)
	if err != nil {
		p.enter(StateFailed)
		log.Warn("synthesis output malformed", "raw_len", len(raw))
		return nil, err
	}

	resp := &Response{
		Artifact: ArtifactView{Type: t, Title: doc.Title, Fields: doc.Fields},
	}
	if req.OwnerID == "" {
		p.enter(StateDone)
		log.Info("generated anonymous deliverable", "duration_ms", time.Since(started).Milliseconds())
		return resp, nil
	}

	// From here on the artifact must not exist without its attempted signal,
	// so the caller's cancellation no longer applies.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.persistTimeout)
	defer cancel()

	p.enter(StatePersisting)
	id, err := p.store.Insert(pctx, store.TableArtifacts, store.ArtifactRecord{
		OwnerID:         req.OwnerID,
		AgentID:         req.AgentID,
		ConversationID:  req.ConversationThreadID,
		DeliverableType: t,
		Title:           doc.Title,
		Fields:          doc.Fields,
	}.Row())
	if err != nil {
		// The document still goes back to its author; with no saved artifact
		// there is nothing to credit, so the remaining side effects are skipped.
		log.Error("artifact insert failed", "owner_id", req.OwnerID, "error", err)
		p.enter(StateDone)
		return resp, nil
	}
	resp.Artifact.ID = &id

	signal, err := p.signaler.Apply(pctx, req.OwnerID, t)
	if err != nil {
		log.Warn("score signal failed", "owner_id", req.OwnerID, "error", err)
		signal = scoring.Result{}
	}
	resp.ScoreSignal = signal
	p.enter(StateSignalApplied)

	created, err := p.evidence.Ensure(pctx, req.OwnerID, t)
	if err != nil {
		log.Warn("evidence write failed", "owner_id", req.OwnerID, "error", err)
	}
	p.enter(StateEvidenceChecked)

	if p.activity != nil {
		label := t.DefaultTitle()
		if profile, ok := deliverable.Lookup(t); ok {
			label = profile.Label
		}
		p.activity.Record(activitylog.Entry{
			OwnerID:     req.OwnerID,
			AgentID:     req.AgentID,
			ActionType:  ActionArtifactGenerated,
			Description: "Generated " + label + ": " + doc.Title,
			Metadata: map[string]any{
				"artifact_id":      id,
				"artifact_type":    string(t),
				"score_boosted":    signal.Boosted,
				"evidence_created": created,
				"schema_match":     doc.Typed != nil,
			},
		})
	}
	p.enter(StateLogged)

	p.enter(StateDone)
	log.Info("generated deliverable",
		"owner_id", req.OwnerID,
		"artifact_id", id,
		"boosted", signal.Boosted,
		"evidence_created", created,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return resp, nil
}

// Package scoring applies one-time readiness-score nudges when a founder
// completes a deliverable.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/edgealpha/artifact-agent/internal/deliverable"
	"github.com/edgealpha/artifact-agent/internal/store"
)

const (
	DataSourceAssessment      = "assessment"
	DataSourceAgentCompletion = "agent_completion"
)

// Result is what the caller sees of a signal attempt.
type Result struct {
	Boosted        bool   `json:"boosted"`
	PointsAdded    int    `json:"pointsAdded,omitempty"`
	DimensionLabel string `json:"dimensionLabel,omitempty"`
	NewOverall     int    `json:"newOverall,omitempty"`
}

// Scores are the per-dimension readiness scores, each in [0,100].
type Scores struct {
	Market    int `json:"market"`
	Product   int `json:"product"`
	GTM       int `json:"gtm"`
	Financial int `json:"financial"`
	Team      int `json:"team"`
	Traction  int `json:"traction"`
}

// Overall is the weighted readiness score, rounded and capped at 100.
func (s Scores) Overall() int {
	v := float64(s.Market)*0.20 +
		float64(s.Product)*0.18 +
		float64(s.GTM)*0.17 +
		float64(s.Financial)*0.18 +
		float64(s.Team)*0.15 +
		float64(s.Traction)*0.12
	return min(100, int(math.Round(v)))
}

// WithBoost returns a copy of s with points added to col, capped at 100.
func (s Scores) WithBoost(col string, points int) (Scores, error) {
	var p *int
	switch col {
	case deliverable.ColumnMarket:
		p = &s.Market
	case deliverable.ColumnProduct:
		p = &s.Product
	case deliverable.ColumnGTM:
		p = &s.GTM
	case deliverable.ColumnFinancial:
		p = &s.Financial
	case deliverable.ColumnTeam:
		p = &s.Team
	case deliverable.ColumnTraction:
		p = &s.Traction
	default:
		return s, fmt.Errorf("unknown score column %q", col)
	}
	*p = min(100, *p+points)
	return s, nil
}

func (s Scores) row() store.Row {
	return store.Row{
		deliverable.ColumnMarket:    s.Market,
		deliverable.ColumnProduct:   s.Product,
		deliverable.ColumnGTM:       s.GTM,
		deliverable.ColumnFinancial: s.Financial,
		deliverable.ColumnTeam:      s.Team,
		deliverable.ColumnTraction:  s.Traction,
	}
}

func scoresFromRow(row store.Row) Scores {
	return Scores{
		Market:    int(store.RowInt(row, deliverable.ColumnMarket)),
		Product:   int(store.RowInt(row, deliverable.ColumnProduct)),
		GTM:       int(store.RowInt(row, deliverable.ColumnGTM)),
		Financial: int(store.RowInt(row, deliverable.ColumnFinancial)),
		Team:      int(store.RowInt(row, deliverable.ColumnTeam)),
		Traction:  int(store.RowInt(row, deliverable.ColumnTraction)),
	}
}

// Grade maps an overall score to its letter grade.
func Grade(score int) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 90:
		return "A"
	case score >= 85:
		return "B+"
	case score >= 80:
		return "B"
	case score >= 75:
		return "C+"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Signaler applies score signals against the score-history table.
type Signaler struct {
	store store.Store
	now   func() time.Time
}

func NewSignaler(s store.Store) *Signaler {
	return &Signaler{store: s, now: time.Now}
}

// Apply nudges the dimension mapped to t by its fixed points, once per
// (owner, type). It reports boosted=false without error when the type has no
// boost, was already applied, or the owner has no baseline score.
func (s *Signaler) Apply(ctx context.Context, ownerID string, t deliverable.Type) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, errors.New("signaler not initialized")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Result{}, errors.New("missing owner id")
	}
	profile, ok := deliverable.Lookup(t)
	if !ok || profile.Boost.Points <= 0 {
		return Result{}, nil
	}
	boost := profile.Boost

	_, applied, err := s.store.SelectOne(ctx, store.TableScores, store.Query{
		Filters: []store.Filter{
			store.Eq(store.ColUserID, ownerID),
			store.Eq("source_artifact_type", string(t)),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("check prior signal: %w", err)
	}
	if applied {
		return Result{}, nil
	}

	latest, ok, err := s.store.SelectOne(ctx, store.TableScores, store.Query{
		Filters: []store.Filter{store.Eq(store.ColUserID, ownerID)},
		OrderBy: []store.Order{{Column: store.ColCreatedAt, Desc: true}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("load latest score: %w", err)
	}
	if !ok {
		return Result{}, nil
	}

	scores, err := scoresFromRow(latest).WithBoost(boost.Column, boost.Points)
	if err != nil {
		return Result{}, err
	}
	overall := scores.Overall()

	row := scores.row()
	row[store.ColUserID] = ownerID
	row["previous_score_id"] = store.RowString(latest, store.ColID)
	if v := store.RowString(latest, "assessment_id"); v != "" {
		row["assessment_id"] = v
	}
	if v, ok := latest["percentile"]; ok && v != nil {
		row["percentile"] = store.RowInt(latest, "percentile")
	}
	row["overall_score"] = overall
	row["grade"] = Grade(overall)
	row["data_source"] = DataSourceAgentCompletion
	row["source_artifact_type"] = string(t)
	row[store.ColCreatedAt] = s.nextTimestamp(latest)

	if _, err := s.store.Insert(ctx, store.TableScores, row); err != nil {
		return Result{}, fmt.Errorf("insert score history: %w", err)
	}
	return Result{
		Boosted:        true,
		PointsAdded:    boost.Points,
		DimensionLabel: boost.Label,
		NewOverall:     overall,
	}, nil
}

// nextTimestamp keeps history strictly ordered even when two rows land in
// the same millisecond.
func (s *Signaler) nextTimestamp(latest store.Row) int64 {
	now := s.now().UnixMilli()
	if prev := store.RowInt(latest, store.ColCreatedAt); now <= prev {
		return prev + 1
	}
	return now
}

// SeedBaseline records an assessment-sourced score row for ownerID and
// returns its overall score.
func (s *Signaler) SeedBaseline(ctx context.Context, ownerID string, scores Scores, percentile int) (int, error) {
	if s == nil || s.store == nil {
		return 0, errors.New("signaler not initialized")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, errors.New("missing owner id")
	}
	for _, v := range []int{scores.Market, scores.Product, scores.GTM, scores.Financial, scores.Team, scores.Traction} {
		if v < 0 || v > 100 {
			return 0, fmt.Errorf("score %d out of range [0,100]", v)
		}
	}
	overall := scores.Overall()
	row := scores.row()
	row[store.ColUserID] = ownerID
	row["overall_score"] = overall
	row["grade"] = Grade(overall)
	row["data_source"] = DataSourceAssessment
	if percentile > 0 {
		row["percentile"] = percentile
	}
	if _, err := s.store.Insert(ctx, store.TableScores, row); err != nil {
		return 0, fmt.Errorf("insert baseline: %w", err)
	}
	return overall, nil
}

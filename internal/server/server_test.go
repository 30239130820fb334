package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgealpha/artifact-agent/internal/config"
	"github.com/edgealpha/artifact-agent/internal/deliverable"
	"github.com/edgealpha/artifact-agent/internal/pipeline"
	"github.com/edgealpha/artifact-agent/internal/store"
)

type stubGenerator struct {
	err  error
	last pipeline.Request
}

func (g *stubGenerator) Generate(_ context.Context, req pipeline.Request) (*pipeline.Response, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	resp := &pipeline.Response{Artifact: pipeline.ArtifactView{Type: req.DeliverableType, Title: "Doc", Fields: map[string]any{"title": "Doc"}}}
	if req.OwnerID != "" {
		id := "art_1"
		resp.Artifact.ID = &id
	}
	return resp, nil
}

type tokenMap map[string]string

func (m tokenMap) ResolveAuthToken(token string) (string, bool, error) {
	owner, ok := m[token]
	return owner, ok, nil
}

func newTestServer(t *testing.T, gen Generator, access config.AccessPolicy) (*Server, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "server.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	access.SchemaVersion = 1
	s, err := New(Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Generator: gen,
		Artifacts: db,
		Tokens:    tokenMap{"tok_u1": "u1"},
		Access:    access,
		Version:   "v0.0.0-test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, db
}

func do(t *testing.T, h http.Handler, method, target, token, body string) (*httptest.ResponseRecorder, apiResp) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out apiResp
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s %s: %v (body=%q)", method, target, err, rec.Body.String())
	}
	return rec, out
}

const generateBody = `{"agentId":"felix","artifactType":"financial_summary","conversationHistory":[{"role":"user","content":"MRR is $10,000"}]}`

func TestGenerate_BearerToken(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	s, _ := newTestServer(t, gen, config.AccessPolicy{Mode: config.AccessBearerToken})
	h := s.Handler()

	rec, out := do(t, h, http.MethodPost, "/api/agents/generate", "tok_u1", generateBody)
	if rec.Code != http.StatusOK || !out.OK {
		t.Fatalf("status=%d resp=%+v", rec.Code, out)
	}
	if gen.last.OwnerID != "u1" || gen.last.DeliverableType != deliverable.FinancialSummary {
		t.Fatalf("request=%+v", gen.last)
	}
	data, _ := out.Data.(map[string]any)
	artifact, _ := data["artifact"].(map[string]any)
	if artifact["id"] != "art_1" {
		t.Fatalf("artifact=%v", artifact)
	}

	cases := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{name: "no token", body: generateBody, status: http.StatusUnauthorized},
		{name: "bad token", token: "tok_x", body: generateBody, status: http.StatusUnauthorized},
		{name: "owner mismatch", token: "tok_u1", body: strings.Replace(generateBody, `{"agentId"`, `{"userId":"u2","agentId"`, 1), status: http.StatusForbidden},
		{name: "bad json", token: "tok_u1", body: `{"agentId":`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec, out := do(t, h, http.MethodPost, "/api/agents/generate", tc.token, tc.body)
		if rec.Code != tc.status || out.OK || out.Error == "" {
			t.Fatalf("%s: status=%d resp=%+v, want %d", tc.name, rec.Code, out, tc.status)
		}
	}
}

func TestGenerate_AnonymousWhenAllowed(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	s, _ := newTestServer(t, gen, config.AccessPolicy{Mode: config.AccessBearerToken, AllowAnonymous: true})

	rec, out := do(t, s.Handler(), http.MethodPost, "/api/agents/generate", "", generateBody)
	if rec.Code != http.StatusOK || !out.OK {
		t.Fatalf("status=%d resp=%+v", rec.Code, out)
	}
	if gen.last.OwnerID != "" {
		t.Fatalf("owner=%q, want anonymous", gen.last.OwnerID)
	}
	artifact := out.Data.(map[string]any)["artifact"].(map[string]any)
	if v, ok := artifact["id"]; !ok || v != nil {
		t.Fatalf("artifact id=%v present=%v, want explicit null", v, ok)
	}
}

func TestGenerate_TrustedOwnerFromBody(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	s, _ := newTestServer(t, gen, config.AccessPolicy{Mode: config.AccessTrusted})
	body := strings.Replace(generateBody, `{"agentId"`, `{"userId":"u7","agentId"`, 1)

	if rec, out := do(t, s.Handler(), http.MethodPost, "/api/agents/generate", "", body); rec.Code != http.StatusOK || !out.OK {
		t.Fatalf("status=%d resp=%+v", rec.Code, out)
	}
	if gen.last.OwnerID != "u7" {
		t.Fatalf("owner=%q, want u7", gen.last.OwnerID)
	}
	if rec, _ := do(t, s.Handler(), http.MethodPost, "/api/agents/generate", "", generateBody); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d, want 401", rec.Code)
	}
}

func TestGenerate_ErrorStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{err: fmt.Errorf("%w: agentId and deliverableType are required", pipeline.ErrValidation), status: 400, msg: "agentId and deliverableType are required"},
		{err: fmt.Errorf("%w: %w", pipeline.ErrGenerationMalformed, errors.New("no object")), status: 502, msg: pipeline.ErrGenerationMalformed.Error()},
		{err: fmt.Errorf("%w: upstream 500", pipeline.ErrGenerationFailed), status: 502, msg: pipeline.ErrGenerationFailed.Error()},
		{err: errors.New("boom"), status: 500, msg: "Failed to generate deliverable"},
	}
	for _, tc := range cases {
		s, _ := newTestServer(t, &stubGenerator{err: tc.err}, config.AccessPolicy{Mode: config.AccessBearerToken})
		rec, out := do(t, s.Handler(), http.MethodPost, "/api/agents/generate", "tok_u1", generateBody)
		if rec.Code != tc.status || !strings.Contains(out.Error, tc.msg) {
			t.Fatalf("err=%v: status=%d error=%q, want %d containing %q", tc.err, rec.Code, out.Error, tc.status, tc.msg)
		}
		if strings.Contains(out.Error, "upstream 500") {
			t.Fatalf("internal detail leaked: %q", out.Error)
		}
	}
}

func TestArtifacts_OwnerScoped(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t, &stubGenerator{}, config.AccessPolicy{Mode: config.AccessBearerToken})
	ctx := context.Background()
	mine, err := db.Insert(ctx, store.TableArtifacts, store.ArtifactRecord{OwnerID: "u1", AgentID: "felix", DeliverableType: deliverable.HiringPlan, Title: "Mine"}.Row())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	theirs, err := db.Insert(ctx, store.TableArtifacts, store.ArtifactRecord{OwnerID: "u2", AgentID: "felix", DeliverableType: deliverable.HiringPlan, Title: "Theirs"}.Row())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	h := s.Handler()

	rec, out := do(t, h, http.MethodGet, "/api/artifacts?limit=10", "tok_u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status=%d resp=%+v", rec.Code, out)
	}
	list, _ := out.Data.([]any)
	if len(list) != 1 || list[0].(map[string]any)["title"] != "Mine" {
		t.Fatalf("list=%v", out.Data)
	}

	if rec, _ := do(t, h, http.MethodGet, "/api/artifacts/"+mine, "tok_u1", ""); rec.Code != http.StatusOK {
		t.Fatalf("get own status=%d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/artifacts/"+theirs, "tok_u1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get other owner's status=%d, want 404", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/artifacts?owner_id=u2", "tok_u1", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("list other owner status=%d, want 403", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/artifacts", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("list anonymous status=%d, want 401", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/artifacts?limit=-1", "tok_u1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &stubGenerator{}, config.AccessPolicy{Mode: config.AccessTrusted})
	rec, out := do(t, s.Handler(), http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || out.Data.(map[string]any)["version"] != "v0.0.0-test" {
		t.Fatalf("status=%d resp=%+v", rec.Code, out)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatalf("New without generator err=nil")
	}
	_, err := New(Options{
		Generator: &stubGenerator{},
		Artifacts: &store.DB{},
		Access:    config.AccessPolicy{SchemaVersion: 1, Mode: config.AccessBearerToken},
	})
	if err == nil {
		t.Fatalf("New bearer_token without Tokens err=nil")
	}
}

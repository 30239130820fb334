package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/edgealpha/artifact-agent/internal/activitylog"
	"github.com/edgealpha/artifact-agent/internal/config"
	"github.com/edgealpha/artifact-agent/internal/pipeline"
	"github.com/edgealpha/artifact-agent/internal/scoring"
	"github.com/edgealpha/artifact-agent/internal/settings"
)

// fakeProvider answers OpenAI-compatible chat completions: the 800-token
// extraction pass gets facts, everything else gets a fenced document.
type fakeProvider struct {
	mu   sync.Mutex
	keys []string
}

func (p *fakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MaxTokens int `json:"max_tokens"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	p.mu.Lock()
	p.keys = append(p.keys, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	p.mu.Unlock()

	reply := "```json\n{\"title\":\"Acme Financial Summary\",\"fields\":{\"mrr\":\"$10k\",\"runway\":\"14 months\"}}\n```"
	if body.MaxTokens == 800 {
		reply = `{"mrr":"$10k","burn":"$40k/month"}`
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl_1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": reply},
		}},
	})
}

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	retries := 0
	cfg := &config.Config{
		LogFormat: "text",
		LogLevel:  "error",
		Generation: &config.GenerationConfig{
			MaxRetries: &retries,
			Providers: []config.Provider{{
				ID:      "mock",
				Type:    config.ProviderOpenAICompatible,
				BaseURL: baseURL,
				Models:  []config.ProviderModel{{ModelName: "test-model", IsDefault: true}},
			}},
		},
		ActivityLog: &config.ActivityLogConfig{FileMirror: true},
	}
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_GenerateEndToEnd(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	srv := httptest.NewServer(http.HandlerFunc(provider.handle))
	t.Cleanup(srv.Close)

	cfgPath := writeTestConfig(t, srv.URL+"/v1")
	stateDir := filepath.Dir(cfgPath)

	if _, err := execute(t, "sk-test\n", "--config", cfgPath, "secrets", "set-key", "--provider", "mock"); err != nil {
		t.Fatalf("secrets set-key: %v", err)
	}
	if _, err := execute(t, "", "--config", cfgPath, "score", "seed", "--owner", "u1",
		"--market=50", "--product=50", "--gtm=50", "--financial=50", "--team=50", "--traction=50"); err != nil {
		t.Fatalf("score seed: %v", err)
	}

	reqPath := filepath.Join(t.TempDir(), "request.json")
	req := `{"agentId":"felix","deliverableType":"financial_summary","ownerId":"u1",
		"conversationHistory":[{"role":"user","content":"We make $10k MRR."},{"role":"agent","content":"What is your burn?"}]}`
	if err := os.WriteFile(reqPath, []byte(req), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := execute(t, "", "--config", cfgPath, "generate", "-f", reqPath, "--json")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var resp pipeline.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if resp.Artifact.ID == nil || resp.Artifact.Title != "Acme Financial Summary" {
		t.Fatalf("artifact=%+v", resp.Artifact)
	}
	wantSignal := scoring.Result{Boosted: true, PointsAdded: 6, DimensionLabel: "Financial", NewOverall: 51}
	if diff := cmp.Diff(wantSignal, resp.ScoreSignal); diff != "" {
		t.Fatalf("score signal mismatch (-want +got):\n%s", diff)
	}

	provider.mu.Lock()
	keys := append([]string(nil), provider.keys...)
	provider.mu.Unlock()
	if diff := cmp.Diff([]string{"sk-test", "sk-test"}, keys); diff != "" {
		t.Fatalf("provider keys mismatch (-want +got):\n%s", diff)
	}

	out, err = execute(t, "", "--config", cfgPath, "artifacts", "list", "--owner", "u1", "--json")
	if err != nil {
		t.Fatalf("artifacts list: %v", err)
	}
	if !strings.Contains(out, *resp.Artifact.ID) {
		t.Fatalf("artifacts list missing %s:\n%s", *resp.Artifact.ID, out)
	}

	out, err = execute(t, "", "--config", cfgPath, "artifacts", "activity", "--owner", "u1")
	if err != nil {
		t.Fatalf("artifacts activity: %v", err)
	}
	if !strings.Contains(out, pipeline.ActionArtifactGenerated) {
		t.Fatalf("activity missing entry:\n%s", out)
	}
	out, err = execute(t, "", "--config", cfgPath, "artifacts", "activity", "--owner", "u1", "--mirror", "--json")
	if err != nil {
		t.Fatalf("artifacts activity --mirror: %v", err)
	}
	var mirrored []activitylog.Entry
	if err := json.Unmarshal([]byte(out), &mirrored); err != nil {
		t.Fatalf("decode mirror %q: %v", out, err)
	}
	if len(mirrored) != 1 || mirrored[0].Metadata["artifact_id"] != *resp.Artifact.ID {
		t.Fatalf("mirror entries=%+v", mirrored)
	}
	if _, err := os.Stat(filepath.Join(stateDir, "activity", "events.jsonl")); err != nil {
		t.Fatalf("activity mirror: %v", err)
	}

	out, err = execute(t, "", "--config", cfgPath, "score", "evidence", "--owner", "u1")
	if err != nil {
		t.Fatalf("score evidence: %v", err)
	}
	if !strings.Contains(out, "Financial Summary built with AI advisor") {
		t.Fatalf("evidence missing:\n%s", out)
	}
}

func TestCLI_GenerateRejectsBadRequestBeforeCallingProvider(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	srv := httptest.NewServer(http.HandlerFunc(provider.handle))
	t.Cleanup(srv.Close)
	cfgPath := writeTestConfig(t, srv.URL+"/v1")

	_, err := execute(t, `{"agentId":"felix","deliverableType":"pitch_deck","conversationHistory":[{"role":"user","content":"hi"}]}`,
		"--config", cfgPath, "generate", "-f", "-")
	if err == nil || !strings.Contains(err.Error(), "pitch_deck") {
		t.Fatalf("generate err=%v, want unknown type error", err)
	}
	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.keys) != 0 {
		t.Fatalf("provider called %d times", len(provider.keys))
	}
}

func TestCLI_ConfigInitAndTokens(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "agent", "config.json")
	out, err := execute(t, "", "--config", cfgPath, "config", "init", "--access", "trusted", "--listen", "127.0.0.1:9911")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, cfgPath) {
		t.Fatalf("config init output=%q", out)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EffectiveAccessPolicy().Mode != config.AccessTrusted || cfg.EffectiveListenAddr() != "127.0.0.1:9911" {
		t.Fatalf("cfg=%+v access=%+v", cfg, cfg.EffectiveAccessPolicy())
	}

	out, err = execute(t, "", "--config", cfgPath, "secrets", "add-token", "--owner", "u7")
	if err != nil {
		t.Fatalf("add-token: %v", err)
	}
	token := strings.TrimSpace(out)
	if !strings.HasPrefix(token, "aat_") {
		t.Fatalf("token=%q", token)
	}
	secrets := settings.NewSecretsStore(cfg.Paths(cfgPath).SecretsPath)
	owner, ok, err := secrets.ResolveAuthToken(token)
	if err != nil || !ok || owner != "u7" {
		t.Fatalf("ResolveAuthToken owner=%q ok=%v err=%v", owner, ok, err)
	}

	if _, err := execute(t, token+"\n", "--config", cfgPath, "secrets", "revoke-token"); err != nil {
		t.Fatalf("revoke-token: %v", err)
	}
	if _, ok, _ := secrets.ResolveAuthToken(token); ok {
		t.Fatalf("token still resolves after revoke")
	}

	if _, err := execute(t, "", "--config", cfgPath, "artifacts", "list", "--owner", "u7"); err == nil {
		t.Fatalf("artifacts list without a database err=nil")
	}
}

func TestReadRequests(t *testing.T) {
	t.Parallel()

	body := `{"agentId":"a","artifactType":"icp_document","userId":"u1","conversationHistory":[{"role":"founder","content":"hi"}]}`
	reqs, err := readRequests([]string{"-"}, strings.NewReader(body))
	if err != nil {
		t.Fatalf("readRequests: %v", err)
	}
	if len(reqs) != 1 || reqs[0].OwnerID != "u1" || reqs[0].DeliverableType != "icp_document" {
		t.Fatalf("reqs=%+v", reqs)
	}

	if _, err := readRequests([]string{"-", "-"}, strings.NewReader(body)); err == nil {
		t.Fatalf("double stdin err=nil")
	}
	if _, err := readRequests(nil, nil); err == nil {
		t.Fatalf("no files err=nil")
	}
	if _, err := readRequests([]string{filepath.Join(t.TempDir(), "missing.json")}, nil); err == nil {
		t.Fatalf("missing file err=nil")
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		format, level string
		wantErr       bool
	}{
		{"", "", false},
		{"json", "debug", false},
		{"TEXT", "warning", false},
		{"xml", "info", true},
		{"json", "trace", true},
	} {
		_, err := newLogger(&bytes.Buffer{}, tc.format, tc.level)
		if (err != nil) != tc.wantErr {
			t.Fatalf("newLogger(%q,%q) err=%v, wantErr=%v", tc.format, tc.level, err, tc.wantErr)
		}
	}
}

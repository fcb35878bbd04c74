package assist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	termai "github.com/termai/termai"
	"github.com/termai/termai/provider"
)

// fakeClient records completion requests without touching the network.
type fakeClient struct {
	calls   int
	lastReq provider.Request
	text    string
	err     error
}

func (f *fakeClient) Complete(ctx context.Context, req provider.Request) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeClient) Name() string { return "fake" }

// testEnv isolates config, history, and API key env for a handler test.
func testEnv(t *testing.T, historyLines ...string) {
	t.Helper()
	t.Setenv("TERMAI_CONFIG_DIR", t.TempDir())
	t.Setenv("TERMAI_API_PROVIDER", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	histPath := filepath.Join(t.TempDir(), "history")
	content := ""
	if len(historyLines) > 0 {
		content = strings.Join(historyLines, "\n") + "\n"
	}
	if err := os.WriteFile(histPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HISTFILE", histPath)
}

func testConfig() *termai.Config {
	cfg := termai.DefaultConfig()
	cfg.Anthropic.APIKey = "sk-test"
	return cfg
}

func TestRunAutoSkipsWhenAutoFixDisabled(t *testing.T) {
	testEnv(t)
	cfg := testConfig()
	cfg.AutoFixErrors = false
	fake := &fakeClient{text: "answer"}

	out, err := NewHandlerWithClient(cfg, fake).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeFix, Command: "git psuh", ExitCode: 1, Auto: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Skipped {
		t.Error("expected skipped outcome")
	}
	if fake.calls != 0 {
		t.Errorf("expected no completion calls, got %d", fake.calls)
	}
}

func TestRunAutoSkipsExitCodesInSkipList(t *testing.T) {
	testEnv(t)
	cfg := testConfig()
	fake := &fakeClient{text: "answer"}
	h := NewHandlerWithClient(cfg, fake)

	for _, code := range []int{0, 130} {
		out, err := h.Run(context.Background(), termai.Invocation{
			Mode: termai.ModeFix, Command: "sleep 100", ExitCode: code, Auto: true,
		})
		if err != nil {
			t.Fatalf("exit %d: unexpected error: %v", code, err)
		}
		if !out.Skipped {
			t.Errorf("exit %d: expected skipped outcome", code)
		}
	}
	if fake.calls != 0 {
		t.Errorf("expected no completion calls, got %d", fake.calls)
	}
}

func TestRunAutoSkipsBeforeKeyValidation(t *testing.T) {
	testEnv(t)
	cfg := termai.DefaultConfig() // no API key

	out, err := NewHandlerWithClient(cfg, &fakeClient{}).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeFix, Command: "ls", ExitCode: 0, Auto: true,
	})
	if err != nil {
		t.Fatalf("successful command must not trip key validation: %v", err)
	}
	if !out.Skipped {
		t.Error("expected skipped outcome")
	}
}

func TestRunAutoProceedsOnRealFailure(t *testing.T) {
	testEnv(t)
	cfg := testConfig()
	fake := &fakeClient{text: "did you mean git push?"}

	out, err := NewHandlerWithClient(cfg, fake).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeFix, Command: "git psuh", ExitCode: 1, Auto: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Skipped || out.Error != nil {
		t.Fatalf("expected success outcome, got %+v", out)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one completion call, got %d", fake.calls)
	}
	if !strings.Contains(fake.lastReq.Prompt, "git psuh") {
		t.Errorf("prompt should embed the failed command: %q", fake.lastReq.Prompt)
	}
	if !strings.Contains(fake.lastReq.Prompt, "failed with exit code 1") {
		t.Errorf("prompt should embed the exit code: %q", fake.lastReq.Prompt)
	}
	if out.Title != "AI Fix Suggestion (for `git psuh`)" {
		t.Errorf("unexpected title %q", out.Title)
	}
	if out.Text != "did you mean git push?" {
		t.Errorf("unexpected text %q", out.Text)
	}
}

func TestRunChatBuildsPromptAndTitle(t *testing.T) {
	testEnv(t)
	cfg := testConfig()
	fake := &fakeClient{text: "find . -size +1G"}

	out, err := NewHandlerWithClient(cfg, fake).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeChat, Query: "how do I find files larger than 1 gigabyte",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "The user asked the following question in their terminal: " +
		"'how do I find files larger than 1 gigabyte'. Provide a helpful answer or relevant command(s)."
	if fake.lastReq.Prompt != want {
		t.Errorf("prompt = %q, want %q", fake.lastReq.Prompt, want)
	}
	if fake.lastReq.System == "" {
		t.Error("expected system prompt to be set")
	}
	if out.Title != "AI Chat" {
		t.Errorf("unexpected title %q", out.Title)
	}
}

func TestRunMissingKeyIsFatal(t *testing.T) {
	testEnv(t)
	cfg := termai.DefaultConfig() // anthropic selected, no key
	fake := &fakeClient{}

	_, err := NewHandlerWithClient(cfg, fake).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeChat, Query: "hello",
	})
	if err == nil {
		t.Fatal("expected fatal error for missing API key")
	}
	if fake.calls != 0 {
		t.Errorf("expected no completion calls, got %d", fake.calls)
	}
}

func TestRunUnsupportedProviderRendersAsText(t *testing.T) {
	testEnv(t)
	cfg := termai.DefaultConfig()
	cfg.APIProvider = "gemini"

	out, err := NewHandler(cfg).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeChat, Query: "hello",
	})
	if err != nil {
		t.Fatalf("unsupported provider must not be fatal: %v", err)
	}
	if out.Error == nil || out.Error.Code != "unsupported_provider" {
		t.Fatalf("expected unsupported_provider error, got %+v", out)
	}
	if !strings.Contains(out.Error.Message, "gemini") {
		t.Errorf("message should name the provider: %q", out.Error.Message)
	}
}

func TestRunOpenAIPlaceholderRendersAsText(t *testing.T) {
	testEnv(t)
	cfg := termai.DefaultConfig()
	cfg.APIProvider = termai.ProviderOpenAI

	out, err := NewHandler(cfg).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeChat, Query: "hello",
	})
	if err != nil {
		t.Fatalf("placeholder provider must not be fatal: %v", err)
	}
	if out.Error == nil || out.Error.Code != "not_implemented" {
		t.Fatalf("expected not_implemented error, got %+v", out)
	}
	if !strings.Contains(out.Error.Message, "not fully implemented yet") {
		t.Errorf("unexpected message %q", out.Error.Message)
	}
}

func TestRunManualFixReadsLastHistoryCommand(t *testing.T) {
	testEnv(t, "git psuh", "ai fix")
	cfg := testConfig()
	fake := &fakeClient{text: "typo: use git push"}

	out, err := NewHandlerWithClient(cfg, fake).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeFix, ExitCode: termai.ExitCodeUnknown,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(fake.lastReq.Prompt, "git psuh") {
		t.Errorf("prompt should embed the history command: %q", fake.lastReq.Prompt)
	}
	if !strings.Contains(fake.lastReq.Prompt, "unknown exit code") {
		t.Errorf("prompt should note the unknown exit code: %q", fake.lastReq.Prompt)
	}
	if out.Title != "AI Fix Suggestion (for `git psuh`)" {
		t.Errorf("unexpected title %q", out.Title)
	}
}

func TestRunManualFixWithEmptyHistory(t *testing.T) {
	testEnv(t)
	cfg := testConfig()

	out, err := NewHandlerWithClient(cfg, &fakeClient{}).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeFix, ExitCode: termai.ExitCodeUnknown,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error == nil || out.Error.Code != "no_command" {
		t.Fatalf("expected no_command error, got %+v", out)
	}
}

func TestRunAPIErrorBecomesTextOutcome(t *testing.T) {
	testEnv(t)
	cfg := testConfig()
	fake := &fakeClient{err: &provider.APIError{StatusCode: 500, Message: "server blew up"}}

	out, err := NewHandlerWithClient(cfg, fake).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeChat, Query: "hello",
	})
	if err != nil {
		t.Fatalf("API errors must not be fatal: %v", err)
	}
	if out.Error == nil || out.Error.Code != "api_error" {
		t.Fatalf("expected api_error outcome, got %+v", out)
	}
	if !strings.Contains(out.Error.Message, "server blew up") {
		t.Errorf("unexpected message %q", out.Error.Message)
	}
}

func TestRunConnectionRefusedRendersAsText(t *testing.T) {
	testEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	refusedURL := srv.URL
	srv.Close()

	cfg := testConfig()
	cfg.Anthropic.BaseURL = refusedURL

	out, err := NewHandler(cfg).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeChat, Query: "hello",
	})
	if err != nil {
		t.Fatalf("transport failures must not be fatal: %v", err)
	}
	if out.Error == nil || out.Error.Code != "api_error" {
		t.Fatalf("expected api_error outcome, got %+v", out)
	}
	if !strings.Contains(out.Error.Message, "request failed") {
		t.Errorf("expected readable message, got %q", out.Error.Message)
	}
}

// embedStub returns an embeddings endpoint answering every input with a
// fixed vector.
func embedStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input any `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad embed request: %v", err)
		}
		n := 1
		if arr, ok := req.Input.([]any); ok {
			n = len(arr)
		}
		type item struct {
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := 0; i < n; i++ {
			resp.Data = append(resp.Data, item{Embedding: []float32{1, 0, 0}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGatherSkipsCacheWriteWhenNothingNew(t *testing.T) {
	testEnv(t, "git status")
	srv := embedStub(t)
	defer srv.Close()

	cfg := testConfig()
	cfg.Context.Embedding.BaseURL = srv.URL
	cfg.Context.Embedding.APIKey = "sk-embed"

	g := NewGatherer(cfg)
	g.Gather(context.Background(), "git status")

	cachePath := termai.CachePath()
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("expected cache written after first gather: %v", err)
	}
	if err := os.Remove(cachePath); err != nil {
		t.Fatal(err)
	}

	g.Gather(context.Background(), "git status")
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Error("cache rewritten although nothing new was embedded")
	}
}

func TestRunCustomPromptOverridesDefault(t *testing.T) {
	testEnv(t)
	dir := os.Getenv("TERMAI_CONFIG_DIR")
	if err := os.WriteFile(filepath.Join(dir, "prompt.md"), []byte("You are a pirate.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	fake := &fakeClient{text: "arr"}

	if _, err := NewHandlerWithClient(cfg, fake).Run(context.Background(), termai.Invocation{
		Mode: termai.ModeChat, Query: "hello",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.lastReq.System != "You are a pirate." {
		t.Errorf("expected custom system prompt, got %q", fake.lastReq.System)
	}
}

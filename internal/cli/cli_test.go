package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/revbot/internal/config"
	"github.com/dshills/revbot/internal/lifecycle"
	"github.com/dshills/revbot/internal/payload"
	"github.com/dshills/revbot/internal/review"
)

// resetFlags restores every flag in the command tree to its default and
// clears its Changed state, since the commands are package-level.
func resetFlags(t *testing.T) {
	t.Helper()
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		visit := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(visit)
		c.PersistentFlags().VisitAll(visit)
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}

// isolate clears the environment Load and the commands read.
func isolate(t *testing.T) {
	t.Helper()
	resetFlags(t)
	for _, k := range []string{
		"OPENAI_MODEL", "OPENAI_BASE_URL", "OPEN_PR_AGENT_ALLOW_APPROVALS", "GITHUB_API_URL",
		"REVBOT_PROVIDER", "REVBOT_MODEL", "REVBOT_BASE_URL", "REVBOT_STRUCTURING_MODEL",
		"REVBOT_STRUCTURED_OUTPUT", "REVBOT_ALLOW_APPROVALS", "REVBOT_DELETE_OLD_COMMENTS",
		"REVBOT_MODEL_TIMEOUT", "REVBOT_MODEL_RETRIES", "REVBOT_CONTEXT_LINES",
		"REVBOT_MAX_DIFF_BYTES", "REVBOT_LOG_LEVEL",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"REVBOT_OLLAMA_API_KEY", "GITHUB_TOKEN", "GITHUB_EVENT_PATH", "GITHUB_OUTPUT",
		"GITHUB_REPOSITORY", "AGENT_OUTPUT_PATH",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

// execute runs the CLI and returns the exit code and stdout.
func execute(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	code := Run(context.Background(), append([]string{"--log-format", "json", "--log-level", "error"}, args...))
	return code, out.String()
}

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "foo", []string{"foo"}},
		{"whitespace trimmed", " a , b , c ", []string{"a", "b", "c"}},
		{"empty parts skipped", "a,,b", []string{"a", "b"}},
		{"glob patterns", "*.go,src/**/*.ts", []string{"*.go", "src/**/*.ts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitComma(tt.input))
		})
	}
}

func TestBuildOverrides(t *testing.T) {
	resetFlags(t)
	assert.Empty(t, buildOverrides(reviewCmd))

	require.NoError(t, reviewCmd.Flags().Set("model", "anthropic/claude-sonnet-4"))
	require.NoError(t, reviewCmd.Flags().Set("delete-old-comments", "false"))
	require.NoError(t, reviewCmd.Flags().Set("context-lines", "5"))
	t.Cleanup(func() { resetFlags(t) })

	assert.Equal(t, map[string]string{
		"model":             "anthropic/claude-sonnet-4",
		"deleteOldComments": "false",
		"contextLines":      "5",
	}, buildOverrides(reviewCmd))
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"runtime", runtimeErr(errors.New("boom")), ExitRuntimeError},
		{"usage", usageErr(errors.New("bad")), ExitUsageError},
		{"config", configErr(errors.New("bad config")), ExitConfigError},
		{"missing credential", fmt.Errorf("wrapped: %w", config.ErrMissingCredential), ExitConfigError},
		{"missing credential as runtime", runtimeErr(config.ErrMissingCredential), ExitConfigError},
		{"cobra parse error", errors.New(`unknown flag: --nope`), ExitUsageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestRunVersion(t *testing.T) {
	isolate(t)
	code, out := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "revbot version "+version+"\n", out)
}

func TestRunUsageErrors(t *testing.T) {
	isolate(t)
	code, _ := execute(t, "no-such-command")
	assert.Equal(t, ExitUsageError, code)

	code, _ = execute(t, "payload", "only-one-arg")
	assert.Equal(t, ExitUsageError, code)

	code, _ = execute(t, "--log-format", "xml", "version")
	assert.Equal(t, ExitUsageError, code)
}

func TestReviewMissingCredential(t *testing.T) {
	isolate(t)
	code, _ := execute(t, "review", "--no-post")
	assert.Equal(t, ExitConfigError, code)
}

func TestReadAgentOutputDiagnostics(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.json")
	_, err := readAgentOutput(missing)
	require.Error(t, err)
	assert.Equal(t, "agent output file not found: "+missing, err.Error())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	_, err = readAgentOutput(empty)
	require.Error(t, err)
	assert.Equal(t, "agent output file is empty: "+empty+" (check earlier workflow steps)", err.Error())

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte("{not json"), 0o644))
	_, err = readAgentOutput(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent output file "+invalid+" does not contain valid JSON")
}

func TestPayloadCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "agent_output.json")
	out := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(in, []byte(`{
  "decision": "APPROVE",
  "summary": "Clean change.",
  "comments": [{"path": "main.go", "line": 3, "comment": "Nice."}]
}`), 0o644))

	code, _ := execute(t, "payload", in, out)
	require.Equal(t, ExitSuccess, code)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	p, err := payload.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, payload.EventComment, p.Event)
	assert.True(t, p.Downgraded())

	code, _ = execute(t, "payload", "--allow-approvals", in, out)
	require.Equal(t, ExitSuccess, code)
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	p, err = payload.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, payload.EventApprove, p.Event)

	code, _ = execute(t, "payload", filepath.Join(dir, "absent.json"), out)
	assert.Equal(t, ExitRuntimeError, code)
}

func TestPayloadCommandApprovalsFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OPEN_PR_AGENT_ALLOW_APPROVALS", "yes")
	dir := t.TempDir()
	in := filepath.Join(dir, "agent_output.json")
	out := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(in, []byte(`{"decision":"APPROVE","summary":"ok","comments":[]}`), 0o644))

	code, _ := execute(t, "payload", in, out)
	require.Equal(t, ExitSuccess, code)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event": "APPROVE"`)
}

func TestOutputsCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	pp := filepath.Join(dir, "payload.json")
	data, err := payload.Marshal(payload.ReviewPayload{Event: payload.EventRequestChanges, Body: "Fix EOF_REVIEW_BODY handling."})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pp, data, 0o644))
	outputs := filepath.Join(dir, "github_output")
	t.Setenv("GITHUB_OUTPUT", outputs)

	code, _ := execute(t, "outputs", "--payload-path", pp, "--agent-output-path", "review.md")
	require.Equal(t, ExitSuccess, code)

	got, err := os.ReadFile(outputs)
	require.NoError(t, err)
	want := "agent-output-path=review.md\n" +
		"payload-path=" + pp + "\n" +
		"review-event=REQUEST_CHANGES\n" +
		"review-body<<EOF_REVIEW_BODY_X\n" +
		"Fix EOF_REVIEW_BODY handling.\n" +
		"EOF_REVIEW_BODY_X\n"
	assert.Equal(t, want, string(got))
}

func TestConfigCommands(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "revbot.yaml")

	code, out := execute(t, "--config", path, "config", "init")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Config file created at "+path)

	code, _ = execute(t, "--config", path, "config", "set", "model", "gpt-4.1")
	require.Equal(t, ExitSuccess, code)

	code, _ = execute(t, "--config", path, "config", "set", "nope", "x")
	assert.Equal(t, ExitUsageError, code)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	code, out = execute(t, "--config", path, "config", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "model: gpt-4.1")
	assert.Contains(t, out, "api key set, github token unset")
	assert.NotContains(t, out, "sk-test")
}

func TestModelsList(t *testing.T) {
	isolate(t)
	code, out := execute(t, "models", "list")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "openai (key: OPENAI_API_KEY):")
	assert.Contains(t, out, "gemini (key: GEMINI_API_KEY or GOOGLE_API_KEY):")
}

// --- end-to-end review ---

func setupRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v failed:\n%s", args, out)
	}
	write := func(name, content string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	run("init")
	run("checkout", "-b", "main")
	write("app.go", "package app\n\nfunc Run() {}\n")
	run("add", "-A")
	run("commit", "-m", "init")
	run("checkout", "-b", "feature")
	write("app.go", "package app\n\nimport \"os\"\n\nfunc Run() { os.Remove(\"x\") }\n")
	run("add", "-A")
	run("commit", "-m", "change")
	return dir
}

func writeEvent(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	event := `{"pull_request":{"number":7,"title":"Remove temp file","body":"",` +
		`"base":{"ref":"main","repo":{"full_name":"acme/widgets"}},"head":{"ref":"feature"}}}`
	require.NoError(t, os.WriteFile(path, []byte(event), 0o644))
	return path
}

// newModelServer answers chat completions with content and records the
// user prompts it saw.
func newModelServer(t *testing.T, content string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		for _, m := range req.Messages {
			if m.Role == "user" {
				prompts = append(prompts, m.Content)
			}
		}
		mu.Unlock()
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			"usage":   map[string]int{"total_tokens": 42},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

type fakeGitHub struct {
	mu      sync.Mutex
	deleted []string
	posted  []string
}

func newGitHubServer(t *testing.T) (*httptest.Server, *fakeGitHub) {
	t.Helper()
	fg := &fakeGitHub{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"id":1,"body":"old review\n\n%s"},{"id":2,"body":"human comment"}]`, lifecycle.Marker)
	})
	mux.HandleFunc("DELETE /repos/acme/widgets/issues/comments/{id}", func(w http.ResponseWriter, r *http.Request) {
		fg.mu.Lock()
		fg.deleted = append(fg.deleted, r.PathValue("id"))
		fg.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Body string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fg.mu.Lock()
		fg.posted = append(fg.posted, body.Body)
		fg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 3, "body": body.Body})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fg
}

func TestReviewEndToEnd(t *testing.T) {
	isolate(t)
	repo := setupRepo(t)
	event := writeEvent(t)
	out := t.TempDir()

	model, prompts := newModelServer(t, "```json\n"+
		`{"decision":"REQUEST_CHANGES","summary":"Unchecked error.","comments":[`+
		`{"path":"app.go","line":5,"comment":"Handle the error from os.Remove."},`+
		`{"path":"app.go","line":null,"comment":"Consider a test."}]}`+"\n```")
	gh, fg := newGitHubServer(t)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GITHUB_TOKEN", "ghs-test")
	t.Setenv("GITHUB_API_URL", gh.URL+"/")

	code, stdout := execute(t, "review",
		"--repo-dir", repo,
		"--event-path", event,
		"--base-url", model.URL,
		"--output-path", filepath.Join(out, "review.md"),
		"--review-path", filepath.Join(out, "review.json"),
		"--payload-path", filepath.Join(out, "payload.json"),
	)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, filepath.Join(out, "review.md")+"\n", stdout)

	require.Len(t, *prompts, 1)
	assert.Contains(t, (*prompts)[0], "Remove temp file")
	assert.Contains(t, (*prompts)[0], "os.Remove")

	data, err := os.ReadFile(filepath.Join(out, "review.json"))
	require.NoError(t, err)
	ro, err := review.DecodeOutput(data)
	require.NoError(t, err)
	assert.Equal(t, review.DecisionRequestChanges, ro.Decision)
	assert.Len(t, ro.Comments, 2)

	data, err = os.ReadFile(filepath.Join(out, "payload.json"))
	require.NoError(t, err)
	p, err := payload.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, payload.EventRequestChanges, p.Event)
	require.Len(t, p.Comments, 1)
	assert.Equal(t, 5, p.Comments[0].Line)
	assert.Contains(t, p.Body, "Consider a test.")

	fg.mu.Lock()
	defer fg.mu.Unlock()
	assert.Equal(t, []string{"1"}, fg.deleted)
	require.Len(t, fg.posted, 1)
	assert.Equal(t, p.Body+"\n\n"+lifecycle.Marker, fg.posted[0])
}

func TestReviewDowngradedApprovalPostsPayloadBody(t *testing.T) {
	isolate(t)
	repo := setupRepo(t)
	event := writeEvent(t)
	out := t.TempDir()

	model, _ := newModelServer(t,
		`{"decision":"APPROVE","summary":"Looks good","comments":[`+
			`{"path":"app.go","line":null,"comment":"missing test"}]}`)
	gh, fg := newGitHubServer(t)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GITHUB_TOKEN", "ghs-test")
	t.Setenv("GITHUB_API_URL", gh.URL+"/")

	code, _ := execute(t, "review",
		"--repo-dir", repo,
		"--event-path", event,
		"--base-url", model.URL,
		"--output-path", filepath.Join(out, "review.md"),
		"--review-path", filepath.Join(out, "review.json"),
		"--payload-path", filepath.Join(out, "payload.json"),
	)
	require.Equal(t, ExitSuccess, code)

	data, err := os.ReadFile(filepath.Join(out, "payload.json"))
	require.NoError(t, err)
	p, err := payload.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, payload.EventComment, p.Event)
	wantBody := "Looks good\n\nAdditional notes:\n- app.go: missing test\n\n" + payload.DowngradeNotice
	assert.Equal(t, wantBody, p.Body)

	fg.mu.Lock()
	defer fg.mu.Unlock()
	require.Len(t, fg.posted, 1)
	assert.Equal(t, wantBody+"\n\n"+lifecycle.Marker, fg.posted[0])
	assert.NotContains(t, fg.posted[0], "### Review: APPROVE")
}

func TestPostUsesPayloadBody(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	pp := filepath.Join(dir, "payload.json")
	data, err := payload.Marshal(payload.Build(review.ReviewOutput{
		Decision: review.DecisionApprove,
		Summary:  "Looks good",
	}, false))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pp, data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "review.md"), []byte("### Review: APPROVE\n"), 0o644))

	gh, fg := newGitHubServer(t)
	t.Setenv("GITHUB_TOKEN", "ghs-test")
	t.Setenv("GITHUB_API_URL", gh.URL+"/")

	code, stdout := execute(t, "post",
		"--event-path", writeEvent(t),
		"--payload-path", pp,
		"--output-path", filepath.Join(dir, "review.md"),
	)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "posted comment 3\n", stdout)

	fg.mu.Lock()
	defer fg.mu.Unlock()
	require.Len(t, fg.posted, 1)
	assert.Equal(t, "Looks good\n\n"+payload.DowngradeNotice+"\n\n"+lifecycle.Marker, fg.posted[0])
}

func TestReviewFallbackAndNoPost(t *testing.T) {
	isolate(t)
	repo := setupRepo(t)
	event := writeEvent(t)
	out := t.TempDir()

	prose := "The change removes a file without checking the error."
	model, prompts := newModelServer(t, prose)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REVBOT_STRUCTURED_OUTPUT", "false")
	t.Setenv("AGENT_OUTPUT_PATH", filepath.Join(out, "agent.md"))

	code, _ := execute(t, "review", "--no-post",
		"--repo-dir", repo,
		"--event-path", event,
		"--base-url", model.URL,
		"--review-path", filepath.Join(out, "review.json"),
		"--payload-path", filepath.Join(out, "payload.json"),
	)
	require.Equal(t, ExitSuccess, code)
	// One review call and one structuring call, both answered with prose.
	assert.Len(t, *prompts, 2)

	md, err := os.ReadFile(filepath.Join(out, "agent.md"))
	require.NoError(t, err)
	assert.Equal(t, prose+"\n", string(md))

	data, err := os.ReadFile(filepath.Join(out, "review.json"))
	require.NoError(t, err)
	ro, err := review.DecodeOutput(data)
	require.NoError(t, err)
	assert.Equal(t, review.DecisionRequestChanges, ro.Decision)
	require.Len(t, ro.Comments, 1)
	assert.Equal(t, review.FallbackPath, ro.Comments[0].Path)
	assert.Equal(t, prose, ro.Comments[0].Comment)
}

func TestReviewBadEventIsRuntimeError(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"action":"opened"}`), 0o644))

	code, _ := execute(t, "review", "--no-post", "--event-path", path)
	assert.Equal(t, ExitRuntimeError, code)
}

func TestSubmitRequiresToken(t *testing.T) {
	isolate(t)
	code, _ := execute(t, "submit", "--event-path", writeEvent(t))
	assert.Equal(t, ExitConfigError, code)
}

func TestPostWithoutEventIsUsageError(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_TOKEN", "ghs-test")
	code, _ := execute(t, "post")
	assert.Equal(t, ExitUsageError, code)
}

func TestCommentBody(t *testing.T) {
	resetFlags(t)
	t.Cleanup(func() { resetFlags(t) })
	dir := t.TempDir()
	md := filepath.Join(dir, "review.md")
	pp := filepath.Join(dir, "payload.json")
	data, err := payload.Marshal(payload.ReviewPayload{Event: payload.EventComment, Body: "payload body"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pp, data, 0o644))
	require.NoError(t, os.WriteFile(md, []byte("markdown body\n"), 0o644))
	flagPayloadPath = pp
	flagOutputPath = md
	t.Setenv("AGENT_OUTPUT_PATH", "")

	body, err := commentBody()
	require.NoError(t, err)
	assert.Equal(t, "payload body", body)

	flagPostMarkdown = true
	body, err = commentBody()
	require.NoError(t, err)
	assert.Equal(t, "markdown body", body)

	require.NoError(t, os.WriteFile(md, []byte("\n\n"), 0o644))
	_, err = commentBody()
	assert.ErrorContains(t, err, "markdown review is empty")
}

package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteActionsOutputs(t *testing.T) {
	var buf bytes.Buffer
	err := WriteActionsOutputs(&buf, ActionsOutputs{
		AgentOutputPath: "revbot-review.md",
		PayloadPath:     "review-payload.json",
		Event:           "COMMENT",
		Body:            "line one\nline two",
	})
	require.NoError(t, err)

	want := "agent-output-path=revbot-review.md\n" +
		"payload-path=review-payload.json\n" +
		"review-event=COMMENT\n" +
		"review-body<<EOF_REVIEW_BODY\n" +
		"line one\nline two\n" +
		"EOF_REVIEW_BODY\n"
	assert.Equal(t, want, buf.String())
}

func TestHeredocDelimiter(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"plain", "EOF_REVIEW_BODY"},
		{"has EOF_REVIEW_BODY inside", "EOF_REVIEW_BODY_X"},
		{"EOF_REVIEW_BODY and EOF_REVIEW_BODY_X", "EOF_REVIEW_BODY_X_X"},
	}
	for _, tt := range tests {
		got := heredocDelimiter(tt.body)
		assert.Equal(t, tt.want, got)
		assert.NotContains(t, tt.body, got)
	}
}

func TestAppendActionsOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "github_output")
	require.NoError(t, os.WriteFile(path, []byte("existing=1\n"), 0o644))

	require.NoError(t, AppendActionsOutputs(path, ActionsOutputs{Event: "APPROVE", Body: "ok"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "existing=1\nagent-output-path=\n")
	assert.Contains(t, string(data), "review-event=APPROVE\n")
}

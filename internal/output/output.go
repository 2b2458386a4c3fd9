package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/revbot/internal/payload"
	"github.com/dshills/revbot/internal/review"
)

// Default artifact file names.
const (
	DefaultMarkdownPath = "revbot-review.md"
	DefaultReviewPath   = "review-output.json"
	DefaultPayloadPath  = "review-payload.json"
)

// Paths names the artifact files a review run produces. An empty path
// skips that artifact.
type Paths struct {
	Markdown string
	Review   string
	Payload  string
}

// WriteArtifacts writes the markdown review, the ReviewOutput JSON and the
// payload JSON for one run.
func WriteArtifacts(report *review.Report, p payload.ReviewPayload, paths Paths) error {
	if err := WriteFile(paths.Markdown, func(w io.Writer) error {
		return WriteMarkdown(w, report)
	}); err != nil {
		return err
	}
	if err := WriteFile(paths.Review, func(w io.Writer) error {
		return WriteReviewJSON(w, report.Output())
	}); err != nil {
		return err
	}
	return WriteFile(paths.Payload, func(w io.Writer) error {
		return WritePayload(w, p)
	})
}

// WriteFile creates path (and its directory) and hands it to write.
// "-" writes to stdout; an empty path is a no-op.
func WriteFile(path string, write func(io.Writer) error) error {
	switch path {
	case "":
		return nil
	case "-":
		return write(os.Stdout)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

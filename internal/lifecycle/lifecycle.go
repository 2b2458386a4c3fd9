package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Marker identifies comments posted by revbot. It is embedded verbatim in
// every comment body and is the only way previous comments are recognized.
const Marker = "<!-- revbot-review -->"

// Comment is an issue comment on a pull request.
type Comment struct {
	ID   int64
	Body string
}

// CommentAPI is the remote comment store.
type CommentAPI interface {
	// ListComments returns every comment on the issue, across all pages.
	ListComments(ctx context.Context, repo string, number int) ([]Comment, error)
	DeleteComment(ctx context.Context, repo string, id int64) error
	CreateComment(ctx context.Context, repo string, number int, body string) (Comment, error)
}

// Target is the pull request to publish to. Number is the raw PR number from
// the review context; anything that is not a positive integer (such as
// "local") means there is nothing to post to.
type Target struct {
	Repo   string
	Number string
}

// Outcome reports what Publish did. Errors encountered along the way are
// recorded here rather than returned.
type Outcome struct {
	Skipped    bool
	SkipReason string
	Found      int
	Deleted    int
	// DeleteFailures counts stale comments that could not be removed.
	DeleteFailures int
	ListErr        error
	Posted         *Comment
	PostErr        error
}

// Converged reports whether exactly one marked comment is known to remain.
func (o Outcome) Converged() bool {
	return o.Posted != nil && o.ListErr == nil && o.DeleteFailures == 0
}

// Manager keeps a single live revbot comment per pull request.
type Manager struct {
	api       CommentAPI
	deleteOld bool
	logger    *zap.Logger
}

// NewManager returns a manager. A nil api means no credential was supplied
// and every Publish is a dry run. When deleteOld is false previous comments
// are left in place.
func NewManager(api CommentAPI, deleteOld bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{api: api, deleteOld: deleteOld, logger: logger}
}

// HasMarker reports whether body was posted by revbot.
func HasMarker(body string) bool {
	return strings.Contains(body, Marker)
}

// Tag appends the marker to body.
func Tag(body string) string {
	return body + "\n\n" + Marker
}

// Publish deletes previously posted revbot comments and posts body as a new
// one. It never returns an error for remote failures; they are logged and
// recorded in the Outcome.
func (m *Manager) Publish(ctx context.Context, target Target, body string) Outcome {
	if m.api == nil {
		m.logger.Info("no GitHub token, skipping comment")
		return Outcome{Skipped: true, SkipReason: "no credential"}
	}
	number, ok := parseNumber(target.Number)
	if !ok {
		m.logger.Info("no pull request to comment on, skipping", zap.String("pr", target.Number))
		return Outcome{Skipped: true, SkipReason: fmt.Sprintf("no pull request number (%s)", target.Number)}
	}
	if target.Repo == "" {
		m.logger.Warn("no repository for pull request, skipping comment", zap.Int("pr", number))
		return Outcome{Skipped: true, SkipReason: "no repository"}
	}

	log := m.logger.With(zap.String("repo", target.Repo), zap.Int("pr", number))
	var out Outcome

	if m.deleteOld {
		m.cleanup(ctx, log, target.Repo, number, &out)
	}

	posted, err := m.api.CreateComment(ctx, target.Repo, number, Tag(body))
	if err != nil {
		out.PostErr = err
		log.Warn("failed to post review comment", zap.Error(err))
		return out
	}
	out.Posted = &posted
	log.Info("posted review comment", zap.Int64("comment_id", posted.ID))
	return out
}

func (m *Manager) cleanup(ctx context.Context, log *zap.Logger, repo string, number int, out *Outcome) {
	comments, err := m.api.ListComments(ctx, repo, number)
	if err != nil {
		out.ListErr = err
		log.Warn("failed to list comments, not deleting old reviews", zap.Error(err))
		return
	}
	for _, c := range comments {
		if !HasMarker(c.Body) {
			continue
		}
		out.Found++
		if err := m.api.DeleteComment(ctx, repo, c.ID); err != nil {
			out.DeleteFailures++
			log.Warn("failed to delete old review comment", zap.Int64("comment_id", c.ID), zap.Error(err))
			continue
		}
		out.Deleted++
		log.Debug("deleted old review comment", zap.Int64("comment_id", c.ID))
	}
}

func parseNumber(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

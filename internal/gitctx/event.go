package gitctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoPullRequest is returned when an event payload has no pull_request object.
var ErrNoPullRequest = errors.New("event payload does not contain pull_request data")

// LocalNumber is the PR number used for reviews of a local checkout.
const LocalNumber = "local"

// PRInfo describes the pull request under review. Fields are always
// populated; missing values carry placeholders.
type PRInfo struct {
	Number     string `json:"number"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Repo       string `json:"repo"`
	BaseBranch string `json:"base_branch"`
	HeadBranch string `json:"head_branch"`
}

// IsLocal reports whether the info was inferred from a local checkout.
func (p PRInfo) IsLocal() bool { return p.Number == LocalNumber }

// PRNumber returns the numeric pull request number, if there is one.
func (p PRInfo) PRNumber() (int, bool) {
	n, err := strconv.Atoi(p.Number)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

type eventPayload struct {
	Number      json.Number `json:"number"`
	PullRequest *struct {
		Number json.Number `json:"number"`
		Title  string      `json:"title"`
		Body   string      `json:"body"`
		Base   struct {
			Ref  string `json:"ref"`
			Repo struct {
				FullName string `json:"full_name"`
			} `json:"repo"`
		} `json:"base"`
		Head struct {
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
}

// LoadEvent reads a GitHub pull_request event payload. fallbackRepo (usually
// $GITHUB_REPOSITORY) is used when the payload lacks base.repo.full_name.
func LoadEvent(path, fallbackRepo string) (PRInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PRInfo{}, fmt.Errorf("reading event payload: %w", err)
	}
	return ParseEvent(data, fallbackRepo)
}

// ParseEvent decodes an event payload already in memory.
func ParseEvent(data []byte, fallbackRepo string) (PRInfo, error) {
	var ev eventPayload
	if err := json.Unmarshal(data, &ev); err != nil {
		return PRInfo{}, fmt.Errorf("parsing event payload: %w", err)
	}
	pr := ev.PullRequest
	if pr == nil {
		return PRInfo{}, ErrNoPullRequest
	}

	return PRInfo{
		Number:     firstNonEmpty(pr.Number.String(), ev.Number.String(), "unknown"),
		Title:      firstNonEmpty(pr.Title, "N/A"),
		Body:       firstNonEmpty(pr.Body, "No description provided"),
		Repo:       firstNonEmpty(pr.Base.Repo.FullName, fallbackRepo, "unknown/unknown"),
		BaseBranch: firstNonEmpty(pr.Base.Ref, "main"),
		HeadBranch: firstNonEmpty(pr.Head.Ref, "unknown"),
	}, nil
}

// LoadLocal infers PR information from the local checkout: the current
// branch against main, with the repository taken from remote.origin.url.
func (c Collector) LoadLocal(ctx context.Context) PRInfo {
	head := firstNonEmpty(c.CurrentBranch(ctx), "unknown")
	repo := "unknown/unknown"
	if owner, name, err := ParseRemoteURL(c.RemoteURL(ctx)); err == nil {
		repo = owner + "/" + name
	}
	return PRInfo{
		Number:     LocalNumber,
		Title:      "Local Review: " + head,
		Body:       "Local review session.",
		Repo:       repo,
		BaseBranch: "main",
		HeadBranch: head,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/\s]+)`)
)

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	url = strings.TrimSuffix(strings.TrimSpace(url), ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", url)
}

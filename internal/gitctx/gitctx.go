package gitctx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultExcludes are lock files left out of every review diff.
var DefaultExcludes = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"poetry.lock",
	"uv.lock",
	"*.lock",
}

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	ContextLines int
	MaxDiffBytes int
	Exclude      []string
}

// ReviewContext is everything the agent sees about a change set.
type ReviewContext struct {
	PR        PRInfo
	Diff      string
	Files     []string
	Truncated bool
}

// Collector gathers diffs from a git working tree.
type Collector struct {
	// Dir is the repository directory. Empty means the process working directory.
	Dir string
}

// Collect builds the review context for pr: the base...head diff with lock
// files and opts.Exclude filtered out.
func (c Collector) Collect(ctx context.Context, pr PRInfo, opts DiffOptions) (ReviewContext, error) {
	diff, err := c.Diff(ctx, pr.BaseBranch, pr.HeadBranch, opts)
	if err != nil {
		return ReviewContext{}, err
	}
	rc := ReviewContext{PR: pr, Diff: diff, Files: extractFiles(diff)}
	rc.Diff, rc.Truncated = truncateDiff(rc.Diff, opts.MaxDiffBytes)
	return rc, nil
}

const truncatedNote = "\n... (diff truncated at max-diff-bytes limit)\n"

// truncateDiff cuts diff to at most limit bytes without splitting a UTF-8
// sequence. limit <= 0 means no limit.
func truncateDiff(diff string, limit int) (string, bool) {
	if limit <= 0 || len(diff) <= limit {
		return diff, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(diff[cut]) {
		cut--
	}
	return diff[:cut] + truncatedNote, true
}

// Diff returns `git diff base...head` with excluded paths removed. When the
// local branches are missing, as in a shallow CI checkout, it retries against
// origin/base...HEAD.
func (c Collector) Diff(ctx context.Context, base, head string, opts DiffOptions) (string, error) {
	args := buildDiffArgs(opts)
	diff, err := c.git(ctx, append([]string{"diff", base + "..." + head}, args...)...)
	if err != nil {
		fallback := "origin/" + base + "...HEAD"
		var ferr error
		diff, ferr = c.git(ctx, append([]string{"diff", fallback}, args...)...)
		if ferr != nil {
			return "", fmt.Errorf("git diff %s...%s: %w", base, head, errors.Join(err, ferr))
		}
	}
	excludes := append(append([]string{}, DefaultExcludes...), opts.Exclude...)
	return filterExcluded(diff, excludes), nil
}

// CurrentBranch returns the checked-out branch, or "" when detached.
func (c Collector) CurrentBranch(ctx context.Context) string {
	out, err := c.git(ctx, "branch", "--show-current")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// RemoteURL returns remote.origin.url, or "" when unset.
func (c Collector) RemoteURL(ctx context.Context) string {
	out, err := c.git(ctx, "config", "--get", "remote.origin.url")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (c Collector) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.Dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

func buildDiffArgs(opts DiffOptions) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	args = append(args, "--", ".")
	for _, p := range DefaultExcludes {
		args = append(args, ":(exclude)"+p)
	}
	return args
}

func extractFiles(diff string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			f := strings.TrimPrefix(line, "+++ b/")
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}

func filterExcluded(diff string, excludes []string) string {
	if len(excludes) == 0 || diff == "" {
		return diff
	}
	sections := splitDiffSections(diff)
	var kept []string
	for _, section := range sections {
		path := extractPathFromSection(section)
		if path == "" || !MatchesAny(path, excludes) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

func splitDiffSections(diff string) []string {
	var sections []string
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	var current strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// extractPathFromSection returns the new path of a file section, falling back
// to the old path for deletions.
func extractPathFromSection(section string) string {
	var old string
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			return strings.TrimPrefix(line, "+++ b/")
		}
		if strings.HasPrefix(line, "--- a/") {
			old = strings.TrimPrefix(line, "--- a/")
		}
	}
	return old
}

// MatchesAny returns true if the path matches any of the given glob patterns.
// Patterns without a slash also match against the base name, so "*.lock"
// catches nested lock files.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if !strings.Contains(clean, "/") {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if path == dir || strings.HasPrefix(path, dir+"/") {
				return true
			}
		}
		if clean != pattern {
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

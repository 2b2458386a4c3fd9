package redact

import (
	"path/filepath"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// DefaultPaths are files whose diff content is never sent to a model.
var DefaultPaths = []string{"**/.env", "**/.env.*", "**/*.pem", "**/*.key", "**/id_rsa"}

var secretPatterns = []*regexp.Regexp{
	// Generic API keys
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// GitHub tokens, classic and fine-grained
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
	// Slack
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-(proj-)?[A-Za-z0-9]{20,}`),
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := Scrub(text)
	return out
}

// Scrub replaces detected secrets in text and reports how many were found.
func Scrub(text string) (string, int) {
	count := 0
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(string) string {
			count++
			return placeholder
		})
	}
	return result, count
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			matched, err = filepath.Match(cleanPattern, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Diff scrubs a unified diff. File sections whose path matches redactPaths
// keep their header but lose their hunks; every other section has secrets
// replaced. It returns the scrubbed diff and the number of redactions.
func Diff(diff string, redactPaths []string) (string, int) {
	if diff == "" {
		return diff, 0
	}
	var b strings.Builder
	total := 0
	for _, section := range splitSections(diff) {
		path := sectionPath(section)
		if path != "" && ShouldRedactPath(path, redactPaths) {
			b.WriteString(sectionHeader(section))
			b.WriteString(placeholder + " (file content redacted by path policy)\n")
			total++
			continue
		}
		scrubbed, n := Scrub(section)
		b.WriteString(scrubbed)
		total += n
	}
	return b.String(), total
}

func splitSections(diff string) []string {
	var sections []string
	start := 0
	for i := 0; i < len(diff); {
		next := strings.Index(diff[i:], "\ndiff --git ")
		if next < 0 {
			break
		}
		cut := i + next + 1
		sections = append(sections, diff[start:cut])
		start = cut
		i = cut
	}
	return append(sections, diff[start:])
}

func sectionPath(section string) string {
	first, _, _ := strings.Cut(section, "\n")
	if !strings.HasPrefix(first, "diff --git ") {
		return ""
	}
	if _, b, ok := strings.Cut(first, " b/"); ok {
		return b
	}
	return ""
}

func sectionHeader(section string) string {
	if i := strings.Index(section, "\n@@"); i >= 0 {
		return section[:i+1]
	}
	return section
}

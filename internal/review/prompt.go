package review

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/revbot/internal/gitctx"
	"github.com/dshills/revbot/internal/providers"
)

const reviewSystemPrompt = `You are an expert code reviewer. Analyze the pull request diff and identify issues that need to be addressed.

Guidelines:
- Focus ONLY on issues that need to be fixed. Do NOT include lengthy positive feedback.
- Be specific and actionable.
- Only review the changes shown in the diff. Ignore generated artifacts and compiled assets even if the PR modifies them.
- Cite locations as path:L<line> or path:L<start>-L<end> using line numbers from the new side of the diff.
- If there are no issues at a given level, skip that level. It is fine to report no issues at all.`

const textFormat = `

Format the review as markdown:
### Issues Found

**🔴 Critical Issues**
- [blocking issues that prevent merge]

**🟡 Important Issues**
- [significant issues that should be addressed]

**🟢 Minor Issues**
- [optional improvements]`

const structuredFormat = `

Respond with a JSON object:
- "decision": "APPROVE" only when there are no blocking issues, otherwise "REQUEST_CHANGES".
- "summary": one short paragraph describing the overall assessment.
- "comments": a list of {"path", "line", "comment"}. "line" is the new-side line number, or null for a file-level note.`

const structuringSystemPrompt = `You convert a free-form code review into a structured JSON review. Do not add findings of your own.

Rules:
1. "decision" is "APPROVE" only when the review reports no blocking (critical) issues. Otherwise it is "REQUEST_CHANGES".
2. "summary" is a one or two sentence overview of the review.
3. Each issue the review mentions becomes one entry in "comments" with "path", "line" and "comment".
4. A citation of the form path:L<n> maps to path and line n. A citation of the form path:L<start>-L<end> maps to path and line start.
5. If an issue names a file but no line, set "line" to null.
6. If an issue cannot be tied to a file path, leave it out of "comments" (it may still inform the summary).

Respond with ONLY the JSON object. No markdown, no prose.`

// ReviewSystemPrompt returns the system prompt for the primary review call.
// structured selects the JSON reply format over free-form markdown.
func ReviewSystemPrompt(structured bool) string {
	if structured {
		return reviewSystemPrompt + structuredFormat
	}
	return reviewSystemPrompt + textFormat
}

// StructuringSystemPrompt returns the system prompt for converting a text
// review into a ReviewOutput.
func StructuringSystemPrompt() string {
	return structuringSystemPrompt
}

// BuildUserPrompt constructs the user prompt from the PR context.
func BuildUserPrompt(rc gitctx.ReviewContext) string {
	var b strings.Builder

	b.WriteString("## Pull Request Information\n")
	fmt.Fprintf(&b, "- **Title**: %s\n", rc.PR.Title)
	fmt.Fprintf(&b, "- **Description**: %s\n", rc.PR.Body)
	fmt.Fprintf(&b, "- **Repository**: %s\n", rc.PR.Repo)
	fmt.Fprintf(&b, "- **Base Branch**: %s\n", rc.PR.BaseBranch)
	fmt.Fprintf(&b, "- **Head Branch**: %s\n", rc.PR.HeadBranch)

	if langs := detectLanguages(rc.Files); len(langs) > 0 {
		fmt.Fprintf(&b, "- **Languages**: %s\n", strings.Join(langs, ", "))
	}
	if rc.Truncated {
		b.WriteString("\nThe diff was truncated; review only what is shown.\n")
	}

	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(rc.Diff)
	b.WriteString("\n--- END DIFF ---\n")

	return b.String()
}

// BuildStructuringPrompt wraps a free-form review for the structuring call.
func BuildStructuringPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Convert this code review into the JSON structure.\n\n")
	b.WriteString("--- BEGIN REVIEW ---\n")
	b.WriteString(text)
	b.WriteString("\n--- END REVIEW ---\n")
	return b.String()
}

// OutputSchema describes the ReviewOutput JSON document.
func OutputSchema() *providers.Schema {
	return &providers.Schema{
		Type: "object",
		Properties: map[string]*providers.Schema{
			"decision": {
				Type: "string",
				Enum: []string{string(DecisionApprove), string(DecisionRequestChanges)},
			},
			"summary": {Type: "string"},
			"comments": {
				Type: "array",
				Items: &providers.Schema{
					Type: "object",
					Properties: map[string]*providers.Schema{
						"path":    {Type: "string"},
						"line":    {Type: "integer", Nullable: true, Description: "new-side line number, null for file-level"},
						"comment": {Type: "string"},
					},
					Required: []string{"path", "comment"},
				},
			},
		},
		Required: []string{"decision", "summary", "comments"},
	}
}

var langMap = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".tf":    "Terraform",
}

func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		lang, ok := langMap[strings.ToLower(filepath.Ext(f))]
		if ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

package review

import (
	"encoding/json"
	"strings"
)

// ExtractJSON finds the first JSON object in a model reply. It accepts bare
// JSON, a ```json fenced block, or an object surrounded by prose. The second
// return value is false when no syntactically valid object is present.
func ExtractJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return s, true
	}
	if block, ok := fencedBlock(s); ok {
		if obj, ok := firstObject(block); ok {
			return obj, true
		}
	}
	return firstObject(s)
}

// fencedBlock returns the body of the first ``` fence, skipping an optional
// language tag on the opening line.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", false
	}
	rest = rest[nl+1:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// maxUnclosedBraces bounds how many unclosed opening braces firstObject
// scans past. Each one costs a scan to the end of the reply.
const maxUnclosedBraces = 32

// firstObject scans for a balanced {...} span that parses as JSON, trying
// each opening brace in turn. Braces inside string literals are ignored.
func firstObject(s string) (string, bool) {
	unclosed := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := matchBrace(s, i)
		if end < 0 {
			unclosed++
			if unclosed == maxUnclosedBraces {
				break
			}
			continue
		}
		if candidate := s[i : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

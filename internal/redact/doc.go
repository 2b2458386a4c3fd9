// Package redact removes secrets from diff content before it is sent to any
// LLM provider.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access key IDs and secret access keys, bearer
// tokens, and provider-specific tokens (Anthropic, OpenAI, Google, GitHub,
// Slack).
//
// [Diff] works per file section: files whose paths match configured glob
// patterns keep their diff header but have their hunks replaced with
// [REDACTED] rather than being scanned line by line.
package redact

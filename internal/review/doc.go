// Package review contains the core types and engine for LLM-based pull
// request review.
//
// It defines the canonical [ReviewOutput] (a decision, a summary and ordered
// comments), runs the review [Agent] over a provider, and normalizes the
// agent's reply. A reply already in JSON shape is used as is; free text goes
// through a secondary structuring call. When structuring fails for any reason
// the [Normalizer] returns a deterministic [FallbackResult] that requests
// changes and carries the raw review text, so a run never aborts because the
// model ignored the requested format.
package review

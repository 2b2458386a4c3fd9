// Package gitctx collects the pull request context a review runs against.
//
// PR metadata comes from a GitHub pull_request event payload ([LoadEvent]) or,
// outside Actions, from the local checkout ([Collector.LoadLocal]). The change
// set is `git diff base...head` with lock files ([DefaultExcludes]) and any
// configured glob patterns filtered out, truncated to a configurable byte
// budget.
package gitctx

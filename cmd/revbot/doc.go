// Revbot reviews GitHub pull requests with LLM providers.
//
// It collects the pull request diff, asks a model for a review, normalizes
// the answer into a decision with file and line comments, and keeps a single
// up-to-date review comment on the pull request.
//
// Usage:
//
//	revbot review                      # review the PR in $GITHUB_EVENT_PATH
//	revbot review --no-post            # write artifacts only
//	revbot payload out.json payload.json   # build a payload from a ReviewOutput
//	revbot outputs                     # emit GitHub Actions step outputs
//	revbot submit                      # submit the payload as a PR review
package main

// Package payload turns a structured review into the review submission sent
// to GitHub.
//
// [Build] splits comments into inline comments (anchored to a line) and
// general notes (listed in the body), and applies the approval policy: when
// approvals are not allowed an APPROVE decision is submitted as a COMMENT
// with a notice appended to the body.
package payload

// Package github adapts the GitHub REST API (via go-github) to revbot's
// needs: listing, deleting and creating PR issue comments for the comment
// lifecycle, and submitting a review payload as a pull request review.
//
// Requests go through an oauth2 bearer-token transport, an in-memory ETag
// cache and secondary rate limit handling.
package github

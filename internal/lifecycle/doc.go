// Package lifecycle keeps exactly one live revbot comment on a pull request.
//
// Each run lists the PR's comments, deletes every comment carrying [Marker],
// and posts the new review body with the marker appended. Remote failures are
// best effort: they are logged and reported in the [Outcome] but never fail
// the run, since the review artifacts on disk are the primary output.
package lifecycle

// Package output writes the artifacts of a review run: the markdown review,
// the ReviewOutput and payload JSON files, a terminal summary, and GitHub
// Actions step outputs.
package output

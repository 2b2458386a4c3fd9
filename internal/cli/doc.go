// Package cli wires together the Cobra command tree for the revbot binary.
//
// It defines the root command and its subcommands (review, payload, outputs,
// post, submit, config, models, version), builds the zap logger, reads
// configuration, and maps errors to exit codes.
package cli

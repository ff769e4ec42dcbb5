// Package preflight validates the host environment before the amanhub
// daemon starts: disk space, memory, write permissions, file descriptor
// limits, and the git binary.
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, dataDir)
//	if checker.HasCriticalFailures(results) { ... }
package preflight

// Package logging provides file-based structured logging with rotation for
// the amanhub daemon. Logs are JSON lines written under the data
// directory's logs/ subtree, mirrored to stderr when the daemon runs in
// the foreground.
package logging

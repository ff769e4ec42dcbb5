// Package gitignore implements gitignore pattern matching as documented
// at https://git-scm.com/docs/gitignore. The full-text indexer uses it
// to skip files that git would ignore, so untracked build artifacts in a
// working tree never reach the search index.
//
// Supported syntax:
//   - Basic patterns (*.log, temp/)
//   - Wildcards (*, ?, **)
//   - Rooted patterns (/build)
//   - Negation (!important.log)
//   - Directory-only patterns (build/)
//   - Nested .gitignore files via AddFromFile with a base directory
//
// Matching is safe for concurrent use.
package gitignore

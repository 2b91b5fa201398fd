// Package diagnostic provides structured warnings and errors collected
// during a traversal without aborting it.
//
// Key capabilities:
//   - Accessor failure reports pinned to a property path
//   - Ambiguous classification and ambiguous swap-discovery warnings
//   - A combined error view for callers that treat warnings as fatal
package diagnostic

// Package swap implements the substitution subsystem: a value can declare an
// alternate "swapped" representation for serialization and a reverse path
// for reconstruction.
//
// Substitutions come from two sources. Explicit registration binds a forward
// and/or reverse conversion function to a declared type in a Registry.
// Convention-based auto-discovery kicks in when no registration exists: the
// registry asks its Inspector for conversion operations declared on the type
// itself. The default MethodInspector scans exported methods named Swap or
// Swapped (forward, optionally taking a *Context, optionally returning an
// error alongside the substitute) and a pointer-receiver Unswap method
// (reverse, accepting the substitute type). Unexported methods are invisible
// to reflection and therefore never candidates; methods whose conventional
// name means something else can be excluded through the inspector's Skip
// list.
//
// A Registry is populated at configuration time and read-only afterwards.
// Resolution and discovery results are cached per type behind a lock, so
// concurrent sessions may trigger discovery for the same type safely.
package swap

// Package uon reads and writes the UON notation inside URL form encoded
// documents. A document is a sequence of key=value pairs joined by '&';
// values carry the UON grammar: $o(...) objects, $a(...) arrays, $s(...)
// explicitly marked strings, %00 null, and plain text scalars whose kind is
// sniffed on read. Literal occurrences of the grammar characters are tilde
// escaped, everything outside the URL-safe alphabet is percent encoded.
package uon

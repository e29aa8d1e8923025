// Package graph is the in-memory form of a decoded NIF file: an ordered
// record table, the references between records, and file-level metadata.
//
// A reference is a position in Graph.Records. Edits that move or remove
// records go through Remove and Reorder, which rewrite every reference to
// match; anything else that changes record positions must do the same.
package graph

// Package memengine is an in-memory implementation of the native
// query-construction protocol and the transaction boundary.
//
// It exists so the query layer can run, and be tested, without a storage
// engine: rows live in process memory, conditions compile to predicate
// closures, and traversals serve each row through a reusable buffer so the
// borrowed-buffer contract of the protocol holds exactly (a row handed to a
// visitor is overwritten by the next row).
//
// With poison mode enabled, closing a read transaction scribbles over every
// buffer served while it was open. Poisoning is conservative: any
// transaction close may invalidate borrowed rows, which makes
// use-after-release bugs in callers observable deterministically.
package memengine

// Package native defines the query-construction protocol the client consumes
// from the storage engine.
//
// The protocol is handle based: every call that creates a resource yields an
// integer handle, with zero reserved as the failure sentinel. After a failed
// call the engine keeps a diagnostic message retrievable through LastError
// until the next call on the same backend. Execution calls (counts, visits,
// removes) report failures as ordinary errors instead; implementations wrap
// their diagnostic in the error they return.
//
// Handles are not goroutine safe. One builder or query handle serves one
// logical caller at a time; the layers above enforce this.
package native

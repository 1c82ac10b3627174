// Package resource keeps Go values that native structures refer to by
// number.
//
// Native memory can only hold integers. When a native stream needs to call
// back into Go, the stream records a baton: a Handle into a Table that
// resolves to the Go-side state (a reader, a writer, a compressor).
//
//	tbl := resource.NewTable()
//	h, _ := tbl.Insert(resource.TypeStreamBaton, state)
//	v, ok := tbl.GetTyped(h, resource.TypeStreamBaton)
//
// # Borrows
//
// A callback in flight borrows its baton so the state cannot be released
// under it. Removing a borrowed handle hides it from lookups at once and
// defers the release until the last borrow is returned:
//
//	tbl.Borrow(h)
//	tbl.Remove(h)       // handle no longer resolves
//	tbl.ReturnBorrow(h) // value is dropped here
//
// Values implementing Dropper are dropped when released.
//
// # Observers
//
// Observers receive an Event for every creation, release and borrow. Tables
// are safe for concurrent use.
package resource

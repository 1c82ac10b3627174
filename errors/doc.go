// Package errors provides structured error types for nativecoll.
//
// Errors are categorized by Phase (which component raised them) and Kind
// (error category). Native failures additionally carry the native status
// code that caused them.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseArray, errors.KindOutOfBounds).
//		Op("get").
//		Detail("index %d out of range (length %d)", i, n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.KeyNotFound(errors.PhaseHash, key)
//	err := errors.NativeCall(errors.PhaseArray, "array_push", int(status), status.String())
//
// Every Error matches the sentinel of its Kind through errors.Is:
//
//	if errors.Is(err, errors.ErrKeyNotFound) { ... }
package errors

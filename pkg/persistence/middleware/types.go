// Package middleware provides composable wrappers around a RecordStore,
// adding at-rest behavior (encryption, redaction) without touching the
// store implementations.
package middleware

import "github.com/conduit-ai/conduit/pkg/ports"

// Middleware allows wrapping a RecordStore to add behavior.
type Middleware func(ports.RecordStore) ports.RecordStore

// Chain applies middlewares left to right: the first one sees calls first.
func Chain(store ports.RecordStore, mws ...Middleware) ports.RecordStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// Package datastore implements the CAS key/value contract (spec §4.1)
// that the job lifecycle persists through.
package datastore

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

import (
	"context"
)

//counterfeiter:generate . Store

// Store is the CAS key/value contract shared by every Datastore backend.
// All job writes go through SetWithCAS; Create/Delete/Lock/Unlock exist
// for the cases the record-change loop doesn't cover on its own.
type Store interface {
	// Create writes value at key, failing distinctly if key already exists.
	Create(ctx context.Context, key string, value []byte) error

	// Read returns the value at key, or ok=false if absent.
	Read(ctx context.Context, key string) (value []byte, ok bool, err error)

	// ReadWithCAS returns the value and its current cas token.
	ReadWithCAS(ctx context.Context, key string) (value []byte, cas uint64, ok bool, err error)

	// SetWithCAS writes value at key conditioned on cas matching the
	// stored token. A missing key with cas == 0 succeeds as an insert
	// (upsert semantics); any other cas value against a missing key is
	// an errors.ErrCASMismatch. Returns the new cas on success.
	SetWithCAS(ctx context.Context, key string, value []byte, cas uint64) (newCas uint64, err error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Lock acquires an exclusive hold on key, returning a token that
	// must be passed to Unlock. While a lock is held and unexpired, a
	// second Lock on the same key fails with errors.ErrLocked. SetWithCAS
	// takes no token: MemoryStore fails every SetWithCAS on a locked key
	// with errors.ErrLocked, the holder's included, and DynamoStore's
	// SetWithCAS does not consult locks at all.
	Lock(ctx context.Context, key string, ttl int) (token string, err error)

	// Unlock releases a hold acquired with Lock.
	Unlock(ctx context.Context, key, token string) error

	// Close releases backend resources.
	Close() error
}

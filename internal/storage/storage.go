// Package storage defines the blob-store contract consumed by the chunk
// loader and the persistence layer, plus a local filesystem-backed
// reference implementation. The production HTTP-backed driver is an
// external collaborator and is represented here only by the Driver
// interface it must satisfy.
package storage

import "context"

// Driver is the storage contract. Get distinguishes "absent" (found=false,
// err=nil) from transport failure (err!=nil). Delete is idempotent.
// List's return order is unspecified.
type Driver interface {
	Get(ctx context.Context, path string) (data []byte, found bool, err error)
	Put(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

package store

import "context"

// Entry is one key/value pair returned from a prefix scan
type Entry struct {
	Key   string
	Value []byte
}

// LocalStore is the durable key-value contract the engine persists through.
// Implementations must guarantee that a value written before a crash is
// readable after restart; the outbox's no-data-loss property rests on this.
type LocalStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

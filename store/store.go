package store

import "context"

/**
 * Store is the durable side of the checkpoint protocol. The engine
 * writes graph snapshots and task trace records under distinct
 * prefixes; a Get on a missing prefix+key returns (nil, nil), absence
 * is not an error.
 */
type Store interface {
	Get(ctx context.Context, prefix, key string) ([]byte, error)
	Set(ctx context.Context, prefix, key string, value []byte) error
	/**
	 * Remove a prefix and key.
	 * Removing a nonexistent prefix + key does NOT return an error.
	 */
	Remove(ctx context.Context, prefix, key string) error

	List(ctx context.Context, prefix string, iterator func(key string) bool) error
}

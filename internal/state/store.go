// Package state persists small relay facts, currently the nonce
// high-water mark, across restarts.
package state

import "context"

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

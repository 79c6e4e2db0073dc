// Package store persists the console session as a small key-value document set.
//
// Every key is read and written independently. A missing or unreadable value
// is never an error for callers of Session: it falls back to the documented
// default for that key.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/mrlift-console/internal/config"
)

// Keys used by the session layout.
const (
	KeyMessages      = "ml_messages"       // JSON array of domain.Message; default []
	KeyThreadID      = "ml_thread_id"      // raw string; absent means no thread
	KeyTestMode      = "ml_test_mode"      // raw string; default new_client
	KeyTestObjective = "ml_test_objective" // raw string; default ""
	KeyEvaluation    = "ml_evaluation"     // JSON domain.Evaluation; default empty
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("store: closed")

// KV is a minimal key-value backend. Get reports ok=false for absent keys.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the backend selected by cfg.
func Open(cfg config.StoreConfig) (KV, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return OpenSQLite(cfg.Path)
	case config.DriverBolt:
		return OpenBolt(cfg.Path)
	case config.DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

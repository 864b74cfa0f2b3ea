// Package datasource defines how raw input bytes are opened.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw input for a single forward read.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

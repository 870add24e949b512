package geotile

import (
	"errors"
	"fmt"

	"github.com/b1naryth1ef/geotile/tiledata"
)

var (
	// ErrPanic wraps a panic recovered while a worker handled a message.
	ErrPanic = errors.New("panic")
	// ErrWorkerClosed is returned by the renderer when a worker stops before
	// delivering its results.
	ErrWorkerClosed = errors.New("worker closed")
)

// WorkerError is reported to the parent when handling a message fails. The
// worker stays usable afterwards.
type WorkerError struct {
	Tile tiledata.TileID
	Op   string
	Err  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker.%s: %s: %v", e.Op, e.Tile, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

func recovered(v interface{}) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, v)
}

package lightcurve

import "context"

// Reader loads a light curve from a file. Implementations return an error
// for files they cannot interpret.
type Reader interface {
	Read(ctx context.Context, path string) (*LightCurve, error)
}

// ReaderFunc adapts a function to Reader
type ReaderFunc func(ctx context.Context, path string) (*LightCurve, error)

// Read calls f
func (f ReaderFunc) Read(ctx context.Context, path string) (*LightCurve, error) {
	return f(ctx, path)
}

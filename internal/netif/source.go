package netif

import "context"

// Source returns the interface table as of the moment it is called.
// Implementations must not cache results between calls.
type Source interface {
	Interfaces(ctx context.Context) ([]Record, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Record, error)

// Interfaces calls f(ctx).
func (f SourceFunc) Interfaces(ctx context.Context) ([]Record, error) {
	return f(ctx)
}

// List returns every interface known to src, unfiltered.
func List(ctx context.Context, src Source) ([]Record, error) {
	return src.Interfaces(ctx)
}

// Count returns the number of interfaces known to src.
func Count(ctx context.Context, src Source) (int, error) {
	records, err := src.Interfaces(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

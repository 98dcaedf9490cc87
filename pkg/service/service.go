package service

import "context"

// Component is anything with a managed lifecycle. Open starts background
// work and must not block for the component's lifetime. Close releases
// resources and waits for in-flight work to finish.
type Component interface {
	Open(ctx context.Context) error
	Close() error
}

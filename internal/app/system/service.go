package system

import "context"

// Service is a long-running component with an explicit lifecycle. The
// Manager starts registered services in order and stops them in reverse,
// so implementations should return from Start once their background work
// is running and only tear down in Stop.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

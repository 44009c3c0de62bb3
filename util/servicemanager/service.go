package servicemanager

import "context"

// Service is a long running component managed by the ServiceManager.
type Service interface {
	// Init prepares the service. An error aborts startup before anything is started.
	Init(ctx context.Context) error

	// Start runs the service until ctx is done, closing readyCh once it is able to serve.
	Start(ctx context.Context, readyCh chan<- struct{}) error

	Stop(ctx context.Context) error

	// Health returns an HTTP status code, a JSON message and an error. With checkLiveness set only
	// the service itself is checked, otherwise its dependencies are checked too.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
}

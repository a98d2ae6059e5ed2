package ports

import "context"

// ServiceInterface is one long-running mode of the binary. Run blocks until ctx
// is cancelled or the service fails.
type ServiceInterface interface {
	Run(ctx context.Context) error
}

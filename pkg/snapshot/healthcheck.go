package snapshot

import "context"

// Pinger is implemented by stores that can verify their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthcheck returns a closure that validates store connectivity for health endpoints.
// Stores that cannot be pinged always report healthy.
func Healthcheck(store Store) func(context.Context) error {
	return func(ctx context.Context) error {
		if store == nil {
			return ErrHealthcheckFailed
		}
		if p, ok := store.(Pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}
}

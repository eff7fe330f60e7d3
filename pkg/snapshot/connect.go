package snapshot

import (
	"context"
	"time"
)

// ConnectOption configures how OpenRedis and OpenPostgres establish a connection.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	poolSize      int
	minIdleConns  int
	maxIdleTime   time.Duration
	maxLifetime   time.Duration
	retryAttempts int
	retryInterval time.Duration
	dialTimeout   time.Duration
}

func defaultConnectOptions() *connectOptions {
	return &connectOptions{
		poolSize:      4,
		minIdleConns:  1,
		maxIdleTime:   10 * time.Minute,
		maxLifetime:   30 * time.Minute,
		retryAttempts: 3,
		retryInterval: 5 * time.Second,
		dialTimeout:   5 * time.Second,
	}
}

// WithPoolSize sets the maximum number of pooled connections.
// Default: 4
func WithPoolSize(n int) ConnectOption {
	return func(o *connectOptions) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithMinIdleConns sets the minimum number of idle connections kept open.
// Default: 1
func WithMinIdleConns(n int) ConnectOption {
	return func(o *connectOptions) {
		o.minIdleConns = max(n, 0)
	}
}

// WithMaxIdleTime sets how long a connection may stay idle before it is closed.
// Default: 10 minutes
func WithMaxIdleTime(d time.Duration) ConnectOption {
	return func(o *connectOptions) {
		o.maxIdleTime = d
	}
}

// WithMaxLifetime sets the maximum lifetime of a connection.
// Default: 30 minutes
func WithMaxLifetime(d time.Duration) ConnectOption {
	return func(o *connectOptions) {
		o.maxLifetime = d
	}
}

// WithRetry configures connection retry behavior.
// Default: 3 attempts, 5 second base interval growing linearly per attempt.
func WithRetry(attempts int, interval time.Duration) ConnectOption {
	return func(o *connectOptions) {
		o.retryAttempts = attempts
		o.retryInterval = interval
	}
}

// WithDialTimeout sets the timeout for establishing a connection.
// Default: 5 seconds
func WithDialTimeout(d time.Duration) ConnectOption {
	return func(o *connectOptions) {
		o.dialTimeout = d
	}
}

// retry calls fn up to attempts times, waiting (i+1)*interval between tries.
func retry(ctx context.Context, attempts int, interval time.Duration, fn func() error) error {
	attempts = max(attempts, 1)

	var err error
	for i := range attempts {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if waitErr := wait(ctx, time.Duration(i+1)*interval); waitErr != nil {
			return waitErr
		}
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

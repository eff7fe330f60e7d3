// Package snapshot provides blob stores for persisting cache snapshots.
//
// A [Store] keeps one opaque blob per key. The cache engine serializes its
// entries and counters into a single blob and hands it to a store; on start
// it loads the blob back and decides whether it is fresh enough to restore.
//
// # Backends
//
//   - [Memory] keeps blobs in process memory (tests, in-process restarts)
//   - [File] writes each blob to its own file with an atomic rename
//   - [Redis] stores blobs as Redis strings, optionally with an expiration
//   - [S3] stores blobs as objects in an S3-compatible bucket
//   - [Postgres] stores blobs in a key/value table
//
// [Compressed] wraps any store with zstd compression.
//
// # Usage
//
//	client, err := snapshot.OpenRedis(ctx, os.Getenv("REDIS_URL"))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := snapshot.NewRedis(client,
//		snapshot.WithRedisPrefix("myapp:"),
//		snapshot.WithRedisTTL(24*time.Hour),
//	)
//
// # Health Checks
//
// [Healthcheck] returns a closure compatible with func(context.Context) error
// health probes. It pings stores that implement [Pinger].
//
// # Error Handling
//
// Load returns [ErrNotFound] when no blob exists for the key. Backend failures
// are wrapped with [ErrLoadFailed], [ErrSaveFailed] or [ErrDeleteFailed] and
// can be matched with errors.Is.
package snapshot

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/snapshot"
)

// openSnapshotStore builds the snapshot backend named by backend.
// It returns a nil store for "none" and a cleanup func that is always safe to call.
func openSnapshotStore(ctx context.Context, backend string, log *slog.Logger) (snapshot.Store, func(), error) {
	var (
		store   snapshot.Store
		cleanup = func() {}
	)

	connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	switch backend {
	case "", "none":
		return nil, cleanup, nil

	case "memory":
		store = snapshot.NewMemory()

	case "file":
		fs, err := snapshot.NewFile(getEnv("SNAPSHOT_DIR", "./snapshots"))
		if err != nil {
			return nil, cleanup, err
		}
		store = fs

	case "redis":
		client, err := snapshot.OpenRedis(connectCtx, os.Getenv("REDIS_URL"))
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { _ = client.Close() }
		store = snapshot.NewRedis(client,
			snapshot.WithRedisPrefix(getEnv("SNAPSHOT_REDIS_PREFIX", "cachesim:")),
			snapshot.WithRedisTTL(48*time.Hour),
		)

	case "postgres":
		pool, err := snapshot.OpenPostgres(connectCtx, os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = pool.Close
		pg := snapshot.NewPostgres(pool, getEnv("SNAPSHOT_TABLE", snapshot.DefaultPostgresTable))
		if err := pg.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		store = pg

	case "s3":
		s3, err := snapshot.NewS3(snapshot.S3Config{
			Bucket:    os.Getenv("SNAPSHOT_S3_BUCKET"),
			AccessKey: os.Getenv("SNAPSHOT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SNAPSHOT_S3_SECRET_KEY"),
			Endpoint:  os.Getenv("SNAPSHOT_S3_ENDPOINT"),
			Region:    getEnv("SNAPSHOT_S3_REGION", snapshot.DefaultS3Region),
			Prefix:    getEnv("SNAPSHOT_S3_PREFIX", "snapshots/"),
			PathStyle: getEnvBool("SNAPSHOT_S3_PATH_STYLE", false),
		})
		if err != nil {
			return nil, cleanup, err
		}
		store = s3

	default:
		return nil, cleanup, fmt.Errorf("unknown snapshot backend %q", backend)
	}

	if getEnvBool("SNAPSHOT_COMPRESS", true) {
		compressed, err := snapshot.NewCompressed(store)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		inner := cleanup
		cleanup = func() {
			_ = compressed.Close()
			inner()
		}
		store = compressed
	}

	log.Info("snapshot store ready", slog.String("backend", backend))
	return store, cleanup, nil
}

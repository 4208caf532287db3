package storage

import (
	"context"
	"time"
)

// Service hands out links to objects in remote object storage.
type Service interface {
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
	GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modemode/internal/storage"
)

// DefaultVideoURL is the sample clip returned while video assembly is mocked.
const DefaultVideoURL = "https://sample-videos.com/video321/mp4/720/big_buck_bunny_720p_1mb.mp4"

// VideoProvider assembles images into a single video and returns its locator.
type VideoProvider interface {
	Assemble(ctx context.Context, images []string) (string, error)
}

// StaticVideo always answers with the same URL.
type StaticVideo struct {
	URL string
}

func (v StaticVideo) Assemble(ctx context.Context, images []string) (string, error) {
	if v.URL == "" {
		return DefaultVideoURL, nil
	}
	return v.URL, nil
}

// S3Video hands out a presigned link to a prepared clip in object storage.
type S3Video struct {
	Storage storage.Service
	Bucket  string
	Key     string
	Expires time.Duration
}

func (v S3Video) Assemble(ctx context.Context, images []string) (string, error) {
	if v.Storage == nil {
		return "", errors.New("storage service not configured")
	}
	link, err := v.Storage.GetObjectURL(ctx, v.Bucket, v.Key, v.Expires)
	if err != nil {
		return "", fmt.Errorf("video link: %w", err)
	}
	return link, nil
}

// Package s3watch provides a producer over an S3 object: it polls the
// object's ETag and emits the object body whenever it changes. Useful
// for binding slowly changing remote state (feature flags, rendered
// fragments, published datasets) into a live view.
package s3watch

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/livebind/pkg/stream"
)

// API is the subset of the S3 client the watcher needs.
// *s3.Client satisfies it.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Watch returns a source that emits the body of s3://bucket/key each
// time its ETag changes, checking every interval. The first poll runs
// immediately on subscribe, so the current body is delivered without
// waiting a full interval.
//
// SDK errors are terminal: they are delivered to the registration's
// fail callback and polling stops. Cancelling the registration stops
// polling and aborts any in-flight request.
func Watch(client API, bucket, key string, interval time.Duration) stream.Source[[]byte] {
	return &watchSource{
		client:   client,
		bucket:   bucket,
		key:      key,
		interval: interval,
	}
}

type watchSource struct {
	client   API
	bucket   string
	key      string
	interval time.Duration
}

func (s *watchSource) Subscribe(next func([]byte), fail func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		var lastETag string

		poll := func() bool {
			etag, err := s.head(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				fail(err)
				return false
			}
			if etag == lastETag {
				return true
			}

			body, err := s.get(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				fail(err)
				return false
			}

			lastETag = etag
			next(body)
			return true
		}

		if !poll() {
			return
		}

		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if !poll() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { cancel() }
}

func (s *watchSource) head(ctx context.Context) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.ETag), nil
}

func (s *watchSource) get(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

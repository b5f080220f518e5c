package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSSink writes JSON objects to a Cloud Storage bucket
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink creates a sink using application default credentials
func NewGCSSink(ctx context.Context, bucket, prefix string) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs target requires a bucket")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix}, nil
}

// Object returns the object name of an artifact
func (s *GCSSink) Object(a Artifact) string {
	return path.Join(s.prefix, a.Category, a.Name)
}

// Put uploads the artifact, replacing any previous object
func (s *GCSSink) Put(ctx context.Context, a Artifact) error {
	data, err := json.MarshalIndent(a.Payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", a.Key(), err)
	}

	w := s.client.Bucket(s.bucket).Object(s.Object(a)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", a.Key(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", a.Key(), err)
	}
	return nil
}

// Clear deletes every object under the category prefix
func (s *GCSSink) Clear(ctx context.Context, category string) error {
	bucket := s.client.Bucket(s.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: path.Join(s.prefix, category) + "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", category, err)
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
			return fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
	}
	return nil
}

// Close releases the storage client
func (s *GCSSink) Close(ctx context.Context) error {
	return s.client.Close()
}

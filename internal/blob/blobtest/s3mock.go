// Package blobtest provides an in-memory S3 server for tests.
package blobtest

import (
	"context"
	"fmt"
	"net/http/httptest"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"

	"github.com/text2tracks/backend/internal/blob"
)

type MockS3 struct {
	Server *httptest.Server
	Store  *blob.Store
	Bucket string
}

// StartMockS3 boots an in-memory S3 server and returns a Store bound to a
// freshly created bucket on it.
func StartMockS3(ctx context.Context, bucket string) (*MockS3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	backend := s3mem.New()
	faker := gofakes3.New(backend)
	server := httptest.NewServer(faker.Server())

	store, err := blob.New(ctx, blob.Config{
		Endpoint:        server.URL,
		Region:          "us-east-1",
		Bucket:          bucket,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("build store: %w", err)
	}

	if err := store.EnsureBucket(ctx); err != nil {
		server.Close()
		return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
	}

	return &MockS3{
		Server: server,
		Store:  store,
		Bucket: bucket,
	}, nil
}

func (m *MockS3) Close() {
	if m == nil || m.Server == nil {
		return
	}
	m.Server.Close()
}

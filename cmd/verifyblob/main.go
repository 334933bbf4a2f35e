// Command verifyblob lists what the blob store actually holds, for checking
// ingestion runs from the outside.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/text2tracks/backend/internal/blob"
	"github.com/text2tracks/backend/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if !cfg.HasBlobStore() {
		log.Fatal("Blob store is not configured, set the S3_* variables")
	}

	ctx := context.Background()

	fmt.Printf("Connecting to %s bucket %s...\n", cfg.S3Endpoint, cfg.S3Bucket)

	bs, err := blob.New(ctx, blob.Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to init blob store: %v", err)
	}

	objects, err := bs.List(ctx, "")
	if err != nil {
		log.Fatalf("Failed to list objects: %v", err)
	}

	if len(objects) == 0 {
		fmt.Println("Bucket is empty (or no objects returned).")
		return
	}

	fmt.Printf("Found %d objects:\n", len(objects))
	var totalSize int64
	for _, obj := range objects {
		fmt.Printf("- %s (%d bytes)\n", obj.Key, obj.Size)
		totalSize += obj.Size
	}
	fmt.Printf("Total size visible via API: %.2f MB\n", float64(totalSize)/1024/1024)
}

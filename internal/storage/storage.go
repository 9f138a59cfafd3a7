// Package storage provides the object storage disks used for product photos
// and delivery proof images: a local filesystem driver and an S3-compatible
// driver (AWS S3, MinIO, Spaces, R2).
package storage

import (
	"fmt"
	"io"

	"marketplace/internal/config"
)

// Disk stores binary blobs under slash-separated keys and resolves public
// URLs for stored keys.
type Disk interface {
	Put(key string, r io.Reader) error
	Delete(key string) error
	URL(key string) string
}

// Connect builds the disk selected by STORAGE_DISK.
func Connect() (Disk, error) {
	switch config.AppEnv.StorageDisk {
	case "local":
		return newLocalDisk(config.AppEnv.StorageLocalRoot, config.AppEnv.StorageBaseURL)
	case "s3":
		return newS3Disk()
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", config.AppEnv.StorageDisk)
	}
}

package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketplace/internal/config"
	"marketplace/internal/storage"
)

var (
	errNoFile       = errors.New("file is required")
	errNotImage     = errors.New("file must be an image")
	errNotVideo     = errors.New("file must be a video")
	errFileTooLarge = errors.New("file too large")
)

// saveImageUpload validates the multipart file under field and stores it on
// the disk under a generated key. Returns the public URL and the key.
// Clients are expected to compress images before upload; the server only
// enforces the content type and the size cap.
func saveImageUpload(c *gin.Context, disk storage.Disk, field, prefix string) (string, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", "", errNoFile
	}

	if header.Size > config.AppEnv.MaxUploadBytes {
		return "", "", errFileTooLarge
	}
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return "", "", errNotImage
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
	default:
		ext = ".jpg"
	}

	file, err := header.Open()
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
	if err := disk.Put(key, file); err != nil {
		return "", "", err
	}
	return disk.URL(key), key, nil
}

// saveVideoUpload stores a short product video. Videos get a larger size cap
// than images.
func saveVideoUpload(c *gin.Context, disk storage.Disk, field, prefix string) (string, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", "", errNoFile
	}

	if header.Size > config.AppEnv.MaxVideoUploadBytes {
		return "", "", errFileTooLarge
	}
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "video/") {
		return "", "", errNotVideo
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".mp4", ".webm", ".mov":
	default:
		ext = ".mp4"
	}

	file, err := header.Open()
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
	if err := disk.Put(key, file); err != nil {
		return "", "", err
	}
	return disk.URL(key), key, nil
}

func uploadErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, errNoFile), errors.Is(err, errNotImage), errors.Is(err, errNotVideo), errors.Is(err, errFileTooLarge):
		return 400, true
	default:
		return 0, false
	}
}

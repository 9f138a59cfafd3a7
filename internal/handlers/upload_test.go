package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"marketplace/internal/config"
)

// memDisk records puts and deletes in memory.
type memDisk struct {
	objects map[string][]byte
}

func newMemDisk() *memDisk {
	return &memDisk{objects: map[string][]byte{}}
}

func (d *memDisk) Put(key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	d.objects[key] = data
	return nil
}

func (d *memDisk) Delete(key string) error {
	delete(d.objects, key)
	return nil
}

func (d *memDisk) URL(key string) string {
	return "http://cdn.test/" + key
}

func multipartFileRequest(t *testing.T, field, filename, contentType string, data []byte) *gin.Context {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = writer.Close()

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestSaveImageUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.AppEnv.MaxUploadBytes = 5 << 20

	disk := newMemDisk()
	c := multipartFileRequest(t, "image", "photo.png", "image/png", []byte("png-bytes"))

	url, key, err := saveImageUpload(c, disk, "image", "products")
	if err != nil {
		t.Fatalf("saveImageUpload returned error: %v", err)
	}
	if !strings.HasPrefix(key, "products/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key: %s", key)
	}
	if url != disk.URL(key) {
		t.Fatalf("url %s does not match key %s", url, key)
	}
	if string(disk.objects[key]) != "png-bytes" {
		t.Fatalf("stored bytes differ")
	}
}

func TestSaveImageUpload_RejectsNonImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.AppEnv.MaxUploadBytes = 5 << 20

	disk := newMemDisk()
	c := multipartFileRequest(t, "image", "doc.pdf", "application/pdf", []byte("%PDF"))

	if _, _, err := saveImageUpload(c, disk, "image", "products"); !errors.Is(err, errNotImage) {
		t.Fatalf("expected errNotImage, got %v", err)
	}
	if len(disk.objects) != 0 {
		t.Fatal("nothing must be stored on rejection")
	}
}

func TestSaveImageUpload_RejectsOversize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.AppEnv.MaxUploadBytes = 4

	disk := newMemDisk()
	c := multipartFileRequest(t, "image", "big.jpg", "image/jpeg", []byte("too big"))

	if _, _, err := saveImageUpload(c, disk, "image", "products"); !errors.Is(err, errFileTooLarge) {
		t.Fatalf("expected errFileTooLarge, got %v", err)
	}
}

func TestSaveImageUpload_RequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.AppEnv.MaxUploadBytes = 5 << 20

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("name", "no file here")
	_ = writer.Close()

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	if _, _, err := saveImageUpload(c, newMemDisk(), "image", "products"); !errors.Is(err, errNoFile) {
		t.Fatalf("expected errNoFile, got %v", err)
	}
}

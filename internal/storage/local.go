package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// localDisk is the local-filesystem driver. Keys are confined to the
// configured root; anything that cleans to a path outside it is rejected.
type localDisk struct {
	root    string
	baseURL string
}

func newLocalDisk(root, baseURL string) (*localDisk, error) {
	if !filepath.IsAbs(root) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = filepath.Join(cwd, root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage/local: mkdir root: %w", err)
	}
	return &localDisk{
		root:    filepath.Clean(root),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (d *localDisk) abs(key string) (string, error) {
	cleanRel := path.Clean("/" + strings.TrimPrefix(strings.TrimSpace(key), "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")
	if cleanRel == "" || cleanRel == "." {
		return "", fmt.Errorf("storage/local: empty key")
	}

	target := filepath.Clean(filepath.Join(d.root, filepath.FromSlash(cleanRel)))
	if target != d.root && !strings.HasPrefix(target, d.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage/local: refusing path outside root: %s", key)
	}
	return target, nil
}

func (d *localDisk) Put(key string, r io.Reader) error {
	full, err := d.abs(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("storage/local: create %s: %w", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("storage/local: write %s: %w", key, err)
	}
	return nil
}

func (d *localDisk) Delete(key string) error {
	full, err := d.abs(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}

func (d *localDisk) URL(key string) string {
	return d.baseURL + "/" + strings.TrimPrefix(key, "/")
}

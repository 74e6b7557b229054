package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
)

var errNoFile = errors.New("no file provided")

// spoolUpload copies one multipart file into its own directory under dir,
// so uploads sharing a name do not overwrite each other.
func spoolUpload(fh *multipart.FileHeader, dir string) (string, error) {
	name := filepath.Base(fh.Filename)
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload %s: %w", name, err)
	}
	defer src.Close()

	slot, err := os.MkdirTemp(dir, "f")
	if err != nil {
		return "", err
	}
	path := filepath.Join(slot, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("saving upload %s: %w", name, err)
	}
	return path, dst.Close()
}

// saveUploadedFiles spools every image upload into dir and returns the
// resulting paths. Non-image files are ignored.
func saveUploadedFiles(files []*multipart.FileHeader, dir string) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		if !layout.IsImage(fh.Filename) {
			continue
		}
		path, err := spoolUpload(fh, dir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// readUpload returns the name and bytes of the "file" form field, refusing
// bodies over maxSize.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("file exceeds the %d byte limit", maxSize)
		}
		return "", nil, errors.New("failed to parse multipart form")
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("reading upload: %w", err)
	}
	return fh.Filename, data, nil
}

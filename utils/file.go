package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// MaxAvatarSize bounds avatar uploads.
const MaxAvatarSize = 2 << 20

var avatarTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateAvatar rejects uploads that are too large or not an image.
func ValidateAvatar(fh *multipart.FileHeader) error {
	if fh.Size > MaxAvatarSize {
		return fmt.Errorf("avatar exceeds %d bytes", MaxAvatarSize)
	}
	if ct := fh.Header.Get("Content-Type"); !avatarTypes[strings.ToLower(ct)] {
		return fmt.Errorf("unsupported avatar type %q", ct)
	}
	return nil
}

// LocalStorage saves uploads under Dir and serves them from URLPrefix. Used
// when R2 is not configured.
type LocalStorage struct {
	Dir       string
	URLPrefix string
}

// EnsureDir creates the upload directory if it doesn't exist
func (l *LocalStorage) EnsureDir() error {
	return os.MkdirAll(l.Dir, os.ModePerm)
}

func (l *LocalStorage) UploadFile(_ context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	if err := SaveFile(fileHeader, filepath.Join(l.Dir, filepath.FromSlash(key))); err != nil {
		return "", err
	}
	return strings.TrimSuffix(l.URLPrefix, "/") + "/" + key, nil
}

// SaveFile saves the uploaded file to the given destination path
func SaveFile(fileHeader *multipart.FileHeader, destPath string) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}

package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/viant/afs"
	"github.com/viant/afs/option"
)

var fileSystem = afs.New()

// ImageExtensions lists the extensions accepted as dataset images
var ImageExtensions = []string{"png", "jpg", "jpeg", "bmp", "gif"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	ext := GetFileExtension(filename)
	for _, imgExt := range ImageExtensions {
		if ext == imgExt {
			return true
		}
	}
	return false
}

// Stem returns the base filename without its last extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GenerateOutputFilename builds {dir}/{stem}_{suffix}.{format}
func GenerateOutputFilename(stem, outputDir, suffix, format string) string {
	if format == "" {
		format = "JPG"
	}
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.%s", stem, suffix, format))
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && info.IsDir()
}

// Exists reports whether anything lives at path
func Exists(ctx context.Context, path string) (bool, error) {
	location, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	return fileSystem.Exists(ctx, location)
}

// CopyFile copies a single file, creating the destination folder if needed
func CopyFile(ctx context.Context, from, to string) error {
	src, err := filepath.Abs(from)
	if err != nil {
		return err
	}
	dst, err := filepath.Abs(to)
	if err != nil {
		return err
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	return fileSystem.Copy(ctx, src, dst, option.NewDest(option.NewSkipChecksum(true)))
}

// RemoveAll deletes a file or a directory tree; a missing path is not an error
func RemoveAll(ctx context.Context, path string) error {
	location, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	ok, err := fileSystem.Exists(ctx, location)
	if err != nil || !ok {
		return err
	}
	return fileSystem.Delete(ctx, location)
}

// RecreateDir deletes dir if present and creates it empty
func RecreateDir(ctx context.Context, dir string) error {
	if err := RemoveAll(ctx, dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	location, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return fileSystem.Create(ctx, location, os.ModePerm, true)
}

// DirSize returns the total size of regular files under dir
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

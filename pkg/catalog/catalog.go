// Package catalog discovers dataset images on disk and groups them by class.
//
// A class is the name of the folder an image lives in. Only files at least
// one folder below the root take part in a grouping; loose files at the root
// are ignored.
package catalog

import (
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/leaf-analyzer/internal/utils"
)

// ClassGroup is the list of image files belonging to one class
type ClassGroup struct {
	Name  string
	Files []string
}

// Groups is an ordered collection of class groups, in first-encounter order
type Groups []ClassGroup

// Names returns the class names in order
func (g Groups) Names() []string {
	names := make([]string, len(g))
	for i, group := range g {
		names[i] = group.Name
	}
	return names
}

// Counts returns the number of files per class
func (g Groups) Counts() map[string]int {
	counts := make(map[string]int, len(g))
	for _, group := range g {
		counts[group.Name] = len(group.Files)
	}
	return counts
}

// Max returns the size of the largest class, or 0 when empty
func (g Groups) Max() int {
	maxCount := 0
	for _, group := range g {
		if len(group.Files) > maxCount {
			maxCount = len(group.Files)
		}
	}
	return maxCount
}

// Get returns the group named name
func (g Groups) Get(name string) (ClassGroup, bool) {
	for _, group := range g {
		if group.Name == name {
			return group, true
		}
	}
	return ClassGroup{}, false
}

// Total returns the number of files across all classes
func (g Groups) Total() int {
	total := 0
	for _, group := range g {
		total += len(group.Files)
	}
	return total
}

// ValidateDirectory checks that path exists, is a readable directory and has
// at least one entry. Image validity is not checked here.
func ValidateDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return statError(path, err)
	}
	if !info.IsDir() {
		return &NotADirectoryError{Path: path}
	}

	dir, err := os.Open(path)
	if err != nil {
		return &NotReadableError{Path: path, Err: err}
	}
	defer dir.Close()

	if _, err := dir.Readdirnames(1); err != nil {
		if errors.Is(err, io.EOF) {
			return &EmptyDirectoryError{Path: path}
		}
		return &NotReadableError{Path: path, Err: err}
	}
	return nil
}

// ValidateFile checks that path exists and is a readable regular file
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return statError(path, err)
	}
	if info.IsDir() {
		return &IsADirectoryError{Path: path}
	}

	f, err := os.Open(path)
	if err != nil {
		return &NotReadableError{Path: path, Err: err}
	}
	return f.Close()
}

// IsSingleLevel reports whether no direct child of path is a directory
func IsSingleLevel(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, statError(path, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return false, nil
		}
	}
	return true, nil
}

// EnumerateFiles lazily walks path and yields every file below it. The first
// file without a supported image extension yields an *UnsupportedFormatError
// and ends the sequence. Traversal order is whatever the filesystem walk
// produces and callers must not rely on it.
func EnumerateFiles(path string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !utils.IsImageFile(d.Name()) {
				yield("", &UnsupportedFormatError{Path: p})
				return filepath.SkipAll
			}
			if !yield(p, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", statError(path, err))
		}
	}
}

// ListFiles drains EnumerateFiles into a slice
func ListFiles(path string) ([]string, error) {
	var files []string
	for file, err := range EnumerateFiles(path) {
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// GroupByClass maps each file to its immediate parent folder, relative to
// root. Files directly inside root are left out. With absolute set the group
// holds the paths as given, otherwise only the file names.
func GroupByClass(root string, files []string, absolute bool) Groups {
	var groups Groups
	index := map[string]int{}

	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			continue
		}
		class := parts[len(parts)-2]

		i, ok := index[class]
		if !ok {
			i = len(groups)
			index[class] = i
			groups = append(groups, ClassGroup{Name: class})
		}

		if absolute {
			groups[i].Files = append(groups[i].Files, file)
		} else {
			groups[i].Files = append(groups[i].Files, parts[len(parts)-1])
		}
	}
	return groups
}

// Scan validates root, enumerates its images and groups them by class
func Scan(root string, absolute bool) (Groups, error) {
	if err := ValidateDirectory(root); err != nil {
		return nil, err
	}
	if absolute {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		root = abs
	}
	files, err := ListFiles(root)
	if err != nil {
		return nil, err
	}
	return GroupByClass(root, files, absolute), nil
}

func statError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &NotFoundError{Path: path}
	case errors.Is(err, fs.ErrPermission):
		return &NotReadableError{Path: path, Err: err}
	}
	return err
}

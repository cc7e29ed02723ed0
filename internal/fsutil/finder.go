// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// LogicQuery selects logic files below a root directory.
type LogicQuery struct {
	Root      string
	Extension string
	// Filter is a glob matched against the path relative to Root without its
	// extension, or against the base name when it has no separator. "*" or
	// empty selects everything.
	Filter string
	// IncludeExperimental keeps files below a directory named "experimental"
	// (any case).
	IncludeExperimental bool
}

// FindLogicFiles returns the matching logic files in lexical order.
func FindLogicFiles(q LogicQuery) ([]string, error) {
	if _, err := os.Stat(q.Root); err != nil {
		return nil, fmt.Errorf("logic path %s: %w", q.Root, err)
	}
	files, err := FindFilesByExtension(q.Root, q.Extension)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, path := range files {
		rel, err := filepath.Rel(q.Root, path)
		if err != nil {
			return nil, err
		}
		if !q.IncludeExperimental && isExperimental(rel) {
			continue
		}
		ok, err := matchFilter(q.Filter, strings.TrimSuffix(rel, q.Extension))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

func isExperimental(rel string) bool {
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if strings.EqualFold(part, "experimental") {
			return true
		}
	}
	return false
}

func matchFilter(filter, relNoExt string) (bool, error) {
	if filter == "" || filter == "*" {
		return true, nil
	}
	target := filepath.ToSlash(relNoExt)
	if !strings.Contains(filter, "/") {
		target = filepath.Base(relNoExt)
	}
	ok, err := filepath.Match(filter, target)
	if err != nil {
		return false, fmt.Errorf("invalid logic filter %q: %w", filter, err)
	}
	return ok, nil
}

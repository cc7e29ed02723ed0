package libio

import (
	"context"
	"path/filepath"

	"github.com/specialistvlad/kernlib/internal/artifact"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/library"
)

// Document is the on-disk form of one master or lazy library.
type Document struct {
	Version      string            `yaml:"version" msgpack:"version"`
	Architecture string            `yaml:"architecture" msgpack:"architecture"`
	Solutions    []SolutionEntry   `yaml:"solutions" msgpack:"solutions"`
	Lazy         map[string]string `yaml:"lazyLibraries,omitempty" msgpack:"lazyLibraries,omitempty"`
}

// SolutionEntry is one solution of a Document.
type SolutionEntry struct {
	Index          int      `yaml:"index" msgpack:"index"`
	Name           string   `yaml:"name" msgpack:"name"`
	Kernels        []string `yaml:"kernels" msgpack:"kernels"`
	CodeObjectFile string   `yaml:"codeObjectFile,omitempty" msgpack:"codeObjectFile,omitempty"`
}

func newDocument(m *library.MasterLibrary, codeObject string) Document {
	doc := Document{Version: m.Version, Architecture: m.Architecture, Solutions: []SolutionEntry{}}
	for _, r := range m.Records() {
		e := SolutionEntry{Index: r.Index, Name: r.Name, CodeObjectFile: codeObject}
		for _, k := range r.Original.Kernels {
			e.Kernels = append(e.Kernels, k.Name)
		}
		doc.Solutions = append(doc.Solutions, e)
	}
	return doc
}

// WriteLibraries writes the metadata of every master library and of each
// lazy library it owns. A lazy library shared by several masters is written
// once. It returns the written paths.
func WriteLibraries(ctx context.Context, l artifact.Layout, format string, masters []*library.MasterLibrary) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	written := make(map[string]bool)
	var out []string

	write := func(path string, doc Document) error {
		if written[path] {
			return nil
		}
		if err := WriteFile(path, format, doc); err != nil {
			return err
		}
		written[path] = true
		out = append(out, path)
		logger.Debug("Wrote library metadata.", "file", path, "count", len(doc.Solutions))
		return nil
	}

	for _, m := range masters {
		doc := newDocument(m, "")
		for _, name := range m.LazyNames() {
			if doc.Lazy == nil {
				doc.Lazy = make(map[string]string)
			}
			doc.Lazy[name] = filepath.Base(l.MetadataPath(name))
		}
		if err := write(l.MetadataPath(l.MasterName(m)), doc); err != nil {
			return nil, err
		}
		for _, name := range m.LazyNames() {
			if err := write(l.MetadataPath(name), newDocument(m.LazyLibraries[name], name)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/kernlib/internal/artifact"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/library"
)

// HelperCode is the generated code of one helper object.
type HelperCode struct {
	Helper *library.HelperObject
	Source string
	Header string
}

// File is the content of one generated source and header pair.
type File struct {
	Group   artifact.Group
	Sources []string
	Headers []string
}

// GroupFiles assigns helper and kernel code to source files. Files that the
// layout always creates are included even when empty; kernels with no source
// text are left out. The result depends only on its inputs and their order.
func GroupFiles(l artifact.Layout, kernels []*library.Kernel, results []generator.Result, helpers []HelperCode) []*File {
	byPath := make(map[string]*File)
	var order []*File
	get := func(g artifact.Group) *File {
		if f, ok := byPath[g.Path]; ok {
			return f
		}
		f := &File{Group: g}
		byPath[g.Path] = f
		order = append(order, f)
		return f
	}

	for _, g := range l.FixedGroups() {
		get(g)
	}
	if l.Lazy {
		for _, k := range kernels {
			if k.CodeObjectFile != "" && artifact.IsFallbackObject(k.CodeObjectFile) {
				get(l.SourceGroup(k, 0))
			}
		}
	}
	for _, h := range helpers {
		f := get(l.HelperGroup(h.Helper))
		f.Sources = append(f.Sources, h.Source)
		f.Headers = append(f.Headers, h.Header)
	}
	for i, res := range results {
		if res.Source == "" {
			continue
		}
		f := get(l.SourceGroup(kernels[i], i))
		f.Sources = append(f.Sources, res.Source)
		f.Headers = append(f.Headers, res.Header)
	}
	return order
}

// WriteFiles writes every file's source and header.
func WriteFiles(ctx context.Context, files []*File) error {
	logger := ctxlog.FromContext(ctx)
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Group.Path), 0o755); err != nil {
			return fmt.Errorf("failed to create source directory: %w", err)
		}
		header := "#pragma once\n\n" + strings.Join(f.Headers, "\n")
		source := fmt.Sprintf("#include \"%s\"\n\n%s", filepath.Base(f.Group.Header()), strings.Join(f.Sources, "\n"))
		if err := os.WriteFile(f.Group.Header(), []byte(header), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Group.Header(), err)
		}
		if err := os.WriteFile(f.Group.Source(), []byte(source), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Group.Source(), err)
		}
		logger.Debug("Wrote kernel source file.", "file", f.Group.Source(), "count", len(f.Sources))
	}
	return nil
}

// CompileSet returns the kernels handed to the toolchain: every kernel not
// flagged as a duplicate by extract.MarkDuplicates.
func CompileSet(kernels []*library.Kernel) []*library.Kernel {
	var out []*library.Kernel
	for _, k := range kernels {
		if k.Duplicate {
			continue
		}
		out = append(out, k)
	}
	return out
}

// withAssembly drops assembly kernels whose generated text is empty; they
// have nothing to assemble.
func withAssembly(compile []*library.Kernel, text map[*library.Kernel]string) []*library.Kernel {
	out := compile[:0:0]
	for _, k := range compile {
		if k.Language == library.Assembly && text[k] == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}

// WriteAssembly writes the assembly text of every kernel in compile that has
// some.
func WriteAssembly(ctx context.Context, l artifact.Layout, compile []*library.Kernel, text map[*library.Kernel]string) error {
	if err := os.MkdirAll(l.AssemblyDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create assembly directory: %w", err)
	}
	n := 0
	for _, k := range compile {
		asm := text[k]
		if k.Language != library.Assembly || k.Duplicate || asm == "" {
			continue
		}
		src, _, _ := l.AssemblyFiles(k)
		if err := os.WriteFile(src, []byte(asm), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", src, err)
		}
		n++
	}
	ctxlog.FromContext(ctx).Debug("Wrote assembly kernels.", "count", n)
	return nil
}

package generator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"

	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/library"
)

const sourceTemplate = `extern "C" __global__ void {{.Name}}(KernelArgs args)
{
{{- range .Params}}
    constexpr auto {{.Name}} = {{.Value}};
{{- end}}
    {{.Name}}_body(args);
}
`

const headerTemplate = `#pragma once
#include <hip/hip_runtime.h>

extern "C" __global__ void {{.Name}}(KernelArgs args);
`

const assemblyTemplate = `.amdgcn_target "amdgcn-amd-amdhsa--{{.ISA}}"
.text
.globl {{.Name}}
.p2align 8
.type {{.Name}},@function
{{- range .Params}}
.set {{.Name}}, {{.Value}}
{{- end}}
{{.Name}}:
    s_endpgm
`

const helperTemplate = `extern "C" __global__ void {{.Name}}(HelperArgs args)
{
    // {{.Kind}}
{{- range .Params}}
    constexpr auto {{.Name}} = {{.Value}};
{{- end}}
}
`

type param struct {
	Name  string
	Value any
}

type view struct {
	Name   string
	ISA    string
	Kind   string
	Params []param
}

func sortedParams(m map[string]any) []param {
	out := make([]param, 0, len(m))
	for k, v := range m {
		out = append(out, param{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Template renders kernels from fixed text templates.
type Template struct {
	source   *template.Template
	header   *template.Template
	assembly *template.Template
	helper   *template.Template
}

// NewTemplate parses the built-in templates.
func NewTemplate() *Template {
	return &Template{
		source:   template.Must(template.New("source").Option("missingkey=error").Parse(sourceTemplate)),
		header:   template.Must(template.New("header").Parse(headerTemplate)),
		assembly: template.Must(template.New("assembly").Option("missingkey=error").Parse(assemblyTemplate)),
		helper:   template.Must(template.New("helper").Parse(helperTemplate)),
	}
}

// Generate renders a source kernel as a source and header pair, and an
// assembly kernel as assembly text with empty source.
func (g *Template) Generate(ctx context.Context, index int, k *library.Kernel) Result {
	res := Result{KernelIndex: index, KernelName: k.Name, CodeObjectFile: k.CodeObjectFile}
	if k.Name == "" {
		ctxlog.FromContext(ctx).Error("Kernel has no name.", "kernelIndex", index)
		res.Code = Fatal
		return res
	}

	v := view{Name: k.Name, ISA: k.ISA, Params: sortedParams(k.Params)}
	var err error
	switch k.Language {
	case library.Source:
		if res.Source, err = render(g.source, v); err == nil {
			res.Header, err = render(g.header, v)
		}
	case library.Assembly:
		res.Assembly, err = render(g.assembly, v)
	default:
		err = fmt.Errorf("unknown language %q", k.Language)
	}
	if err != nil {
		ctxlog.FromContext(ctx).Error("Kernel generation failed.", "kernel", k.Name, "error", err)
		return Result{KernelIndex: index, Code: Fatal, KernelName: k.Name, CodeObjectFile: k.CodeObjectFile}
	}
	return res
}

// GenerateHelper renders a helper object as a source and header pair.
func (g *Template) GenerateHelper(_ context.Context, h *library.HelperObject) (string, string, error) {
	v := view{Name: h.KernelName(), Kind: h.Kind, Params: sortedParams(h.Params)}
	src, err := render(g.helper, v)
	if err != nil {
		return "", "", fmt.Errorf("helper %s: %w", h.KernelName(), err)
	}
	hdr, err := render(g.header, v)
	if err != nil {
		return "", "", fmt.Errorf("helper %s: %w", h.KernelName(), err)
	}
	return src, hdr, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

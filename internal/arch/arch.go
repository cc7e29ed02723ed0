// Package arch knows which GPU targets the build can produce code for and how
// requested architecture names select logic files and targets.
package arch

import (
	"fmt"
	"slices"
	"strings"
)

// Fallback is the pseudo-architecture whose solutions are merged into every
// real architecture.
const Fallback = "fallback"

// All selects every supported target.
const All = "all"

// SupportedTargets lists the offload targets, including xnack variants, in the
// order source code objects are produced for them.
var SupportedTargets = []string{
	"gfx900",
	"gfx906:xnack-",
	"gfx908:xnack+",
	"gfx908:xnack-",
	"gfx90a:xnack+",
	"gfx90a:xnack-",
	"gfx940",
	"gfx941",
	"gfx942",
	"gfx1030",
	"gfx1100",
	"gfx1101",
	"gfx1200",
	"gfx1201",
}

// Split parses an architecture argument. Lists are separated by ';', with '_'
// accepted as a separator for build systems that cannot pass nested lists.
func Split(s string) []string {
	sep := "_"
	if strings.Contains(s, ";") {
		sep = ";"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Select resolves requested architecture names into supported targets. A
// request matches every target it is a prefix of, so "gfx90a" selects both
// xnack variants. Unknown names are an error.
func Select(requested []string) ([]string, error) {
	if len(requested) == 0 || slices.Contains(requested, All) {
		return slices.Clone(SupportedTargets), nil
	}
	var out []string
	var unknown []string
	for _, req := range requested {
		matched := false
		for _, t := range SupportedTargets {
			if strings.HasPrefix(t, req) {
				matched = true
				if !slices.Contains(out, t) {
					out = append(out, t)
				}
			}
		}
		if !matched {
			unknown = append(unknown, req)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("architecture %s not supported", strings.Join(unknown, ", "))
	}
	return out, nil
}

// Accept reports whether a logic file written for logicArch takes part in a
// build that requested the given architectures.
func Accept(logicArch string, requested []string) bool {
	if logicArch == "" {
		return false
	}
	if logicArch == Fallback || len(requested) == 0 || slices.Contains(requested, All) {
		return true
	}
	for _, r := range requested {
		if r == logicArch || strings.HasPrefix(r, logicArch) {
			return true
		}
	}
	return false
}

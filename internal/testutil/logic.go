package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Logic describes a logic file fixture.
type Logic struct {
	Version      string     `yaml:"version,omitempty"`
	Architecture string     `yaml:"architecture"`
	ProblemType  string     `yaml:"problemType,omitempty"`
	Solutions    []Solution `yaml:"solutions"`
}

// Solution describes one solution of a logic file fixture.
type Solution struct {
	Name           string         `yaml:"name"`
	KernelLanguage string         `yaml:"kernelLanguage,omitempty"`
	ISA            string         `yaml:"isa,omitempty"`
	Params         map[string]any `yaml:"params,omitempty"`
	Helpers        []Helper       `yaml:"helpers,omitempty"`
}

// Helper describes a helper object of a solution fixture.
type Helper struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"`
}

// WriteLogic renders l as YAML at root/rel and returns the full path.
func WriteLogic(t *testing.T, root, rel string, l Logic) string {
	t.Helper()
	data, err := yaml.Marshal(l)
	require.NoError(t, err)
	WriteFiles(t, root, map[string]string{rel: string(data)})
	return filepath.Join(root, filepath.FromSlash(rel))
}

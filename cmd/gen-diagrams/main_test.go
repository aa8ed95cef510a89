package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gaiaflow/internal/validation"
)

const examplesDir = "../../examples"

func TestExamplesAreValid(t *testing.T) {
	entries, err := os.ReadDir(examplesDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		t.Run(e.Name(), func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(examplesDir, e.Name()))
			require.NoError(t, err)
			wf, result := validation.Load(data)
			require.NotNil(t, wf)
			assert.True(t, result.Valid(), result.Messages())
		})
	}
}

func TestGenerate(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, generate(examplesDir, out))

	md, err := os.ReadFile(filepath.Join(out, "hello.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "```mermaid\ngraph TD\n"))
	assert.Contains(t, string(md), "greet --> repeat")

	txt, err := os.ReadFile(filepath.Join(out, "fan-out.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "merge")
}

func TestGenerate_MissingDir(t *testing.T) {
	assert.Error(t, generate(filepath.Join(t.TempDir(), "nope"), t.TempDir()))
}

// TEST TYPE: Integration Test
// DEPENDENCIES: Filesystem (temp directories)
// PURPOSE: Test the full run end to end: profile-driven selection,
// loading, binary handling, and both output formats

package copytree_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregpriday/copytree/pkg/copytree"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestRun_MarkdownSnapshot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "pkg/util.go", "package pkg\n")
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, "node_modules/dep/index.js", "x")

	res, err := copytree.Run(context.Background(), copytree.Options{
		Root:          root,
		InMemoryCache: true,
	})
	require.NoError(t, err)

	out := string(res.Output)
	assert.Contains(t, out, "## main.go")
	assert.Contains(t, out, "## pkg/util.go")
	assert.NotContains(t, out, "node_modules", "default profile excludes node_modules")

	assert.Equal(t, 2, res.Summary.Selected)
	assert.Equal(t, len(res.Output), res.Summary.OutputBytes)
	assert.Positive(t, res.Summary.Duration)
}

func TestRun_CustomProfile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "notes.txt", "scratch\n")
	writeFile(t, root, ".copytree/go-only.yaml", `
name: go-only
rules:
  - - [extension, "=", go]
`)

	res, err := copytree.Run(context.Background(), copytree.Options{
		Root:          root,
		Profile:       "go-only",
		InMemoryCache: true,
	})
	require.NoError(t, err)

	assert.Contains(t, string(res.Output), "main.go")
	assert.NotContains(t, string(res.Output), "notes.txt")
	assert.Equal(t, 1, res.Summary.Selected)
}

func TestRun_XMLFormatAndWriterStreaming(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	var streamed bytes.Buffer
	res, err := copytree.Run(context.Background(), copytree.Options{
		Root:          root,
		Format:        "xml",
		Writer:        &streamed,
		InMemoryCache: true,
	})
	require.NoError(t, err)

	assert.Contains(t, string(res.Output), "<copytree")
	assert.Contains(t, string(res.Output), `path="main.go"`)
	assert.Equal(t, string(res.Output), streamed.String())
}

func TestRun_BinaryPlaceholder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "logo.png", string([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 1, 2}))

	res, err := copytree.Run(context.Background(), copytree.Options{
		Root:          root,
		InMemoryCache: true,
	})
	require.NoError(t, err)

	assert.Contains(t, string(res.Output), "[Binary file: image,")
	assert.Equal(t, 1, res.Summary.Transformed)
}

func TestRun_UnknownFormatFails(t *testing.T) {
	_, err := copytree.Run(context.Background(), copytree.Options{
		Root:   t.TempDir(),
		Format: "pdf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf")
}

func TestRun_MissingProfileFails(t *testing.T) {
	_, err := copytree.Run(context.Background(), copytree.Options{
		Root:    t.TempDir(),
		Profile: "nope",
	})
	require.Error(t, err)
}

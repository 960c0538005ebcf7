// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test document shape for both renderers: ordering, error and
// structure-only annotations, fence widening, XML attributes

package render_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/render"
	"github.com/gregpriday/copytree/pkg/types"
)

func sampleBatch() *types.Batch {
	return &types.Batch{
		Root: "/src/app",
		Files: []*types.FileRecord{
			{Path: "zeta/util.go", Size: 12, Content: []byte("package zeta")},
			{Path: "main.go", Size: 14, Content: []byte("package main\n")},
			{
				Path:           "docs/brief.pdf",
				Size:           9000,
				IsBinary:       true,
				BinaryCategory: "document",
				Transformed:    true,
				TransformedBy:  "document.pdf",
				Content:        []byte("Extracted text"),
			},
			{Path: "big.bin", Size: 1 << 20, StructureOnly: true},
			{
				Path:    "broken.txt",
				Err:     errors.New(errors.ErrFileRead, "permission denied"),
				Content: []byte("[Transform error: permission denied]"),
			},
		},
	}
}

func TestMarkdown_RenderShape(t *testing.T) {
	var buf bytes.Buffer
	err := render.NewMarkdown().Render(context.Background(), sampleBatch(), &buf)
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "# Codebase: /src/app")
	assert.Contains(t, out, "5 files")

	// path-sorted file sections
	main := strings.Index(out, "## main.go")
	zeta := strings.Index(out, "## zeta/util.go")
	big := strings.Index(out, "## big.bin")
	require.True(t, main > 0 && zeta > 0 && big > 0)
	assert.Less(t, big, main)
	assert.Less(t, main, zeta)

	assert.Contains(t, out, "```go\npackage main\n```")
	assert.Contains(t, out, "> Transformed by document.pdf")
	assert.Contains(t, out, "> Content omitted")
	assert.Contains(t, out, "> Error: [FILE_READ] permission denied")
}

func TestMarkdown_FenceWidensForEmbeddedFences(t *testing.T) {
	batch := &types.Batch{
		Root: "/src",
		Files: []*types.FileRecord{
			{Path: "README.md", Content: []byte("example:\n```go\ncode\n```\n")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, render.NewMarkdown().Render(context.Background(), batch, &buf))

	assert.Contains(t, buf.String(), "````markdown\n")
	assert.Contains(t, buf.String(), "\n````\n")
}

func TestXML_RenderShape(t *testing.T) {
	var buf bytes.Buffer
	err := render.NewXML().Render(context.Background(), sampleBatch(), &buf)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	root := doc.SelectElement("copytree")
	require.NotNil(t, root)
	assert.Equal(t, "/src/app", root.SelectAttrValue("root", ""))
	assert.Equal(t, "5", root.SelectAttrValue("fileCount", ""))

	files := root.SelectElement("files").SelectElements("file")
	require.Len(t, files, 5)

	// path-sorted
	assert.Equal(t, "big.bin", files[0].SelectAttrValue("path", ""))
	assert.Equal(t, "broken.txt", files[1].SelectAttrValue("path", ""))
	assert.Equal(t, "zeta/util.go", files[4].SelectAttrValue("path", ""))

	assert.Equal(t, "true", files[0].SelectAttrValue("structureOnly", ""))
	assert.Nil(t, files[0].SelectElement("content"))

	pdf := files[2]
	assert.Equal(t, "docs/brief.pdf", pdf.SelectAttrValue("path", ""))
	assert.Equal(t, "true", pdf.SelectAttrValue("binary", ""))
	assert.Equal(t, "document.pdf", pdf.SelectAttrValue("transformedBy", ""))
	assert.Equal(t, "Extracted text", pdf.SelectElement("content").Text())

	broken := files[1]
	require.NotNil(t, broken.SelectElement("error"))
	assert.Contains(t, broken.SelectElement("error").Text(), "permission denied")
}

func TestNewRegistry_RegistersBuiltins(t *testing.T) {
	reg, err := render.NewRegistry()
	require.NoError(t, err)

	assert.True(t, reg.Has("markdown"))
	assert.True(t, reg.Has("xml"))
}

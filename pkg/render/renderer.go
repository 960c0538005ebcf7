// Package render turns a finished batch into an output document. Renderers
// stream to a writer so large snapshots never need a second full copy in
// memory.
package render

import (
	"context"
	"io"
	"path"
	"sort"

	"github.com/gregpriday/copytree/pkg/registry"
	"github.com/gregpriday/copytree/pkg/types"
)

// Renderer writes a batch to w as one document
type Renderer interface {
	Name() string
	Render(ctx context.Context, batch *types.Batch, w io.Writer) error
}

// NewRegistry returns a registry with the built-in renderers registered
func NewRegistry() (*registry.Registry[Renderer], error) {
	reg := registry.New[Renderer]()
	for _, r := range []Renderer{NewMarkdown(), NewXML()} {
		if err := reg.Register(r.Name(), r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// sortedFiles returns the batch's records ordered by path. Rendering is
// path-ordered regardless of pipeline completion order.
func sortedFiles(batch *types.Batch) []*types.FileRecord {
	files := make([]*types.FileRecord, len(batch.Files))
	copy(files, batch.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// languageHint maps a file extension to a fence language tag
func languageHint(p string) string {
	switch path.Ext(p) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".sh", ".bash":
		return "bash"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".md":
		return "markdown"
	case ".html":
		return "html"
	case ".css":
		return "css"
	case ".sql":
		return "sql"
	case ".xml":
		return "xml"
	default:
		return ""
	}
}

package render

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gregpriday/copytree/pkg/types"
)

// Markdown renders the batch as a document with a file tree summary
// followed by one fenced section per file
type Markdown struct{}

func NewMarkdown() *Markdown { return &Markdown{} }

func (m *Markdown) Name() string { return "markdown" }

func (m *Markdown) Render(ctx context.Context, batch *types.Batch, w io.Writer) error {
	bw := bufio.NewWriter(w)
	files := sortedFiles(batch)

	fmt.Fprintf(bw, "# Codebase: %s\n\n", batch.Root)
	fmt.Fprintf(bw, "%d files\n\n", len(files))

	bw.WriteString("## File tree\n\n```\n")
	for _, f := range files {
		fmt.Fprintln(bw, f.Path)
	}
	bw.WriteString("```\n")

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.renderFile(bw, f)
	}

	return bw.Flush()
}

func (m *Markdown) renderFile(bw *bufio.Writer, f *types.FileRecord) {
	fmt.Fprintf(bw, "\n## %s\n\n", f.Path)

	switch {
	case f.Err != nil:
		fmt.Fprintf(bw, "> Error: %s\n", f.Err)
		if len(f.Content) == 0 {
			return
		}
	case f.StructureOnly:
		bw.WriteString("> Content omitted\n")
		return
	}

	if f.Transformed {
		fmt.Fprintf(bw, "> Transformed by %s\n\n", f.TransformedBy)
	}
	if f.Encoding == "base64" {
		bw.WriteString("> Encoding: base64\n\n")
	}

	lang := languageHint(f.Path)
	fence := fenceFor(f.Content)
	fmt.Fprintf(bw, "%s%s\n", fence, lang)
	bw.Write(f.Content)
	if len(f.Content) > 0 && f.Content[len(f.Content)-1] != '\n' {
		bw.WriteByte('\n')
	}
	fmt.Fprintf(bw, "%s\n", fence)
}

// fenceFor widens the code fence when the content itself contains one
func fenceFor(content []byte) string {
	fence := "```"
	for strings.Contains(string(content), fence) {
		fence += "`"
	}
	return fence
}

package render

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/gregpriday/copytree/pkg/types"
)

// XML renders the batch as a structured document suitable for machine
// consumption alongside the markdown format
type XML struct{}

func NewXML() *XML { return &XML{} }

func (x *XML) Name() string { return "xml" }

func (x *XML) Render(ctx context.Context, batch *types.Batch, w io.Writer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("copytree")
	root.CreateAttr("root", batch.Root)
	root.CreateAttr("generatedAt", time.Now().UTC().Format(time.RFC3339))

	files := sortedFiles(batch)
	root.CreateAttr("fileCount", strconv.Itoa(len(files)))

	filesEl := root.CreateElement("files")
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		x.renderFile(filesEl, f)
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

func (x *XML) renderFile(parent *etree.Element, f *types.FileRecord) {
	el := parent.CreateElement("file")
	el.CreateAttr("path", f.Path)
	el.CreateAttr("size", strconv.FormatInt(f.Size, 10))
	if f.MimeType != "" {
		el.CreateAttr("mimeType", f.MimeType)
	}
	if f.IsBinary {
		el.CreateAttr("binary", "true")
		el.CreateAttr("category", f.BinaryCategory)
	}
	if f.Transformed {
		el.CreateAttr("transformedBy", f.TransformedBy)
	}
	if f.Encoding != "" && f.Encoding != "utf-8" {
		el.CreateAttr("encoding", f.Encoding)
	}
	if f.Truncated {
		el.CreateAttr("truncated", "true")
	}

	if f.Err != nil {
		el.CreateElement("error").SetText(f.Err.Error())
	}
	if f.StructureOnly {
		el.CreateAttr("structureOnly", "true")
		return
	}
	if len(f.Content) > 0 {
		el.CreateElement("content").SetCData(string(f.Content))
	}
}

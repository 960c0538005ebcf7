package types

import "time"

// FileRecord represents a single file as it moves through the pipeline.
// Discovery creates it with path metadata only, Loading fills content and
// binary classification, Transform may rewrite Content.
type FileRecord struct {
	// Path is the posix-separated path relative to the scan root
	Path string

	// AbsolutePath is the absolute filesystem path
	AbsolutePath string

	// Origin names the external source destination this record came from.
	// Empty for files discovered under the scan root.
	Origin string

	Size  int64
	MTime time.Time

	// IsBinary and BinaryCategory are set by the loading stage
	IsBinary       bool
	BinaryCategory string
	MimeType       string

	// Content holds the file's bytes, or the transformed text after the
	// transform stage. Encoding describes how Content should be read
	// ("utf-8" or "base64").
	Content  []byte
	Encoding string

	// StructureOnly marks files whose content was dropped by policy,
	// keeping only the path in the output
	StructureOnly bool

	// Truncated marks files whose content was capped at the configured
	// maximum read size
	Truncated bool

	Transformed   bool
	TransformedBy string

	// Err records a per-file failure (load or transform). The record is
	// never dropped because of an error, only annotated.
	Err error
}

// Clone returns a copy of the record. Content is shared since records
// treat it as immutable once written.
func (f *FileRecord) Clone() *FileRecord {
	c := *f
	return &c
}

// Batch is the unit of work passed between pipeline stages. Stages return
// a new or extended batch rather than mutating the input in place.
type Batch struct {
	// Root is the absolute path of the scanned tree
	Root string

	// Profile is the resolved profile driving selection and transforms
	Profile *Profile

	Files []*FileRecord

	// Output holds the rendered document after the render stage
	Output []byte

	// RecoveredFromError is set when a stage-level failure was converted
	// into an all-error batch instead of aborting the run
	RecoveredFromError bool
}

// Clone returns a copy of the batch with a freshly allocated file slice.
// Individual records are shared; stages that rewrite a record clone it first.
func (b *Batch) Clone() *Batch {
	c := *b
	c.Files = make([]*FileRecord, len(b.Files))
	copy(c.Files, b.Files)
	return &c
}

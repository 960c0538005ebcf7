// Package detect classifies file content as binary or text and assigns a
// content category. Classification combines magic-number signatures, an
// extension table, and statistical heuristics over a sampled prefix.
package detect

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gregpriday/copytree/pkg/logging"
)

// Reason records which step of the decision ladder classified the file
type Reason string

const (
	ReasonError     Reason = "error"
	ReasonMagic     Reason = "magic"
	ReasonExtension Reason = "extension"
	ReasonNullByte  Reason = "null-byte"
	ReasonRatio     Reason = "ratio"
	ReasonTextual   Reason = "textual"
)

// Options tunes the sampling heuristics
type Options struct {
	// SampleBytes is how much of the file head to inspect
	SampleBytes int
	// NonPrintableThreshold is the non-printable byte ratio above which
	// a file counts as binary
	NonPrintableThreshold float64
}

// DefaultOptions returns the standard sampling parameters
func DefaultOptions() Options {
	return Options{SampleBytes: 8192, NonPrintableThreshold: 0.30}
}

// Result is the classification outcome
type Result struct {
	IsBinary bool
	Category Category
	Reason   Reason
	// Name identifies the matched magic signature, when Reason is magic
	Name string
	// Err holds the read error when Reason is error
	Err error
}

// Detect classifies the file at path. A read failure fails open to text so
// the pipeline still surfaces the file instead of dropping it.
func Detect(path string, opts Options) Result {
	if opts.SampleBytes <= 0 {
		opts.SampleBytes = DefaultOptions().SampleBytes
	}
	if opts.NonPrintableThreshold <= 0 {
		opts.NonPrintableThreshold = DefaultOptions().NonPrintableThreshold
	}

	sample, err := readSample(path, opts.SampleBytes)
	if err != nil {
		lg := logging.GetLogger("detect")
		lg.Debug().Err(err).Str("path", path).
			Msg("Sample read failed, classifying as text")
		return Result{IsBinary: false, Category: CategoryText, Reason: ReasonError, Err: err}
	}

	return Classify(path, sample, opts)
}

// Classify runs the decision ladder over an already-read sample.
// First match wins: magic signature, extension table, NUL byte,
// non-printable ratio, then textual.
func Classify(path string, sample []byte, opts Options) Result {
	if opts.NonPrintableThreshold <= 0 {
		opts.NonPrintableThreshold = DefaultOptions().NonPrintableThreshold
	}

	if sig, ok := matchSignature(sample); ok {
		return Result{IsBinary: true, Category: sig.category, Reason: ReasonMagic, Name: sig.name}
	}

	if category, ok := extensionCategories[normalizedExt(path)]; ok {
		return Result{IsBinary: true, Category: category, Reason: ReasonExtension}
	}

	for _, b := range sample {
		if b == 0 {
			return Result{IsBinary: true, Category: CategoryOther, Reason: ReasonNullByte}
		}
	}

	if len(sample) > 0 {
		ratio := float64(countNonPrintable(sample)) / float64(len(sample))
		if ratio > opts.NonPrintableThreshold {
			return Result{IsBinary: true, Category: CategoryOther, Reason: ReasonRatio}
		}
	}

	return Result{IsBinary: false, Category: CategoryText, Reason: ReasonTextual}
}

// IsConvertibleDocument reports whether a file should be routed through the
// external document converter rather than the generic binary policy
func IsConvertibleDocument(category Category, ext string) bool {
	if category != CategoryDocument {
		return false
	}
	_, ok := convertibleDocuments[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// MimeType guesses a file's MIME type from its extension, falling back to
// content sniffing over the sample
func MimeType(path string, sample []byte) string {
	if mime, ok := extensionMimeTypes[normalizedExt(path)]; ok {
		return mime
	}
	if len(sample) > 0 {
		// DetectContentType appends charset parameters; drop them
		sniffed := http.DetectContentType(sample)
		if idx := strings.Index(sniffed, ";"); idx != -1 {
			sniffed = sniffed[:idx]
		}
		return strings.TrimSpace(sniffed)
	}
	return "application/octet-stream"
}

func normalizedExt(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func readSample(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sample := make([]byte, n)
	read, err := io.ReadFull(f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return sample[:read], nil
}

// countNonPrintable counts control bytes outside common text whitespace
func countNonPrintable(sample []byte) int {
	count := 0
	for _, b := range sample {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			count++
		}
	}
	return count
}

package transform

import (
	"context"
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/gregpriday/copytree/pkg/types"
)

// Binary replaces binary file content according to the configured policy.
// Files with policy "skip" never reach this transformer; the loading stage
// drops their content instead.
type Binary struct {
	// Policy is "placeholder", "comment" or "base64"
	Policy string
}

func (b *Binary) Name() string       { return "binary" }
func (b *Binary) CacheEnabled() bool { return false }
func (b *Binary) IsHeavy() bool      { return false }

func (b *Binary) CanTransform(file *types.FileRecord) bool {
	return file.IsBinary && !file.StructureOnly && file.Err == nil
}

// OutputEncoding reports how the replacement content is encoded
func (b *Binary) OutputEncoding() string {
	if b.Policy == "base64" {
		return "base64"
	}
	return "utf-8"
}

func (b *Binary) Transform(_ context.Context, file *types.FileRecord) (string, error) {
	switch b.Policy {
	case "base64":
		return base64.StdEncoding.EncodeToString(file.Content), nil
	case "comment":
		return fmt.Sprintf("// Binary file: %s (%s, %d bytes)", file.Path, file.BinaryCategory, file.Size), nil
	default:
		return fmt.Sprintf("[Binary file: %s, %d bytes]", file.BinaryCategory, file.Size), nil
	}
}

// Truncate caps oversized text content at MaxBytes, cutting on a rune
// boundary and appending a note with the number of bytes dropped.
type Truncate struct {
	MaxBytes int
}

func (t *Truncate) Name() string       { return "truncate" }
func (t *Truncate) CacheEnabled() bool { return false }
func (t *Truncate) IsHeavy() bool      { return false }

func (t *Truncate) CanTransform(file *types.FileRecord) bool {
	return !file.IsBinary && !file.StructureOnly && file.Err == nil &&
		t.MaxBytes > 0 && len(file.Content) > t.MaxBytes
}

func (t *Truncate) Transform(_ context.Context, file *types.FileRecord) (string, error) {
	cut := t.MaxBytes
	for cut > 0 && !utf8.RuneStart(file.Content[cut]) {
		cut--
	}
	dropped := len(file.Content) - cut
	return fmt.Sprintf("%s\n[Truncated: %d bytes omitted]", file.Content[:cut], dropped), nil
}

// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test individual rule operators and field extraction

package rules_test

import (
	"testing"
	"time"

	"github.com/gregpriday/copytree/pkg/rules"
	"github.com/gregpriday/copytree/pkg/types"
	"github.com/stretchr/testify/assert"
)

func evalOne(t *testing.T, view *fakeView, r types.Rule) bool {
	t.Helper()
	engine := rules.NewEngine()
	return engine.Matches(view, types.RuleGroup{{r}}, nil, types.Always{})
}

func TestFieldExtraction(t *testing.T) {
	view := &fakeView{path: "src/util/strings_test.go"}

	tests := []struct {
		name string
		rule types.Rule
		want bool
	}{
		{"path", rule("path", "=", "src/util/strings_test.go"), true},
		{"dirname", rule("dirname", "=", "src/util"), true},
		{"basename", rule("basename", "=", "strings_test.go"), true},
		{"extension_without_dot", rule("extension", "=", "go"), true},
		{"filename_without_extension", rule("filename", "=", "strings_test"), true},
		{"folder_is_parent_name", rule("folder", "=", "util"), true},
		{"folder_mismatch", rule("folder", "=", "src"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalOne(t, view, tt.rule))
		})
	}
}

func TestFieldExtraction_RootFile(t *testing.T) {
	view := &fakeView{path: "README"}

	assert.True(t, evalOne(t, view, rule("dirname", "=", "")))
	assert.True(t, evalOne(t, view, rule("folder", "=", "")))
	assert.True(t, evalOne(t, view, rule("extension", "=", "")))
	assert.True(t, evalOne(t, view, rule("filename", "=", "README")))
}

func TestNumericOperators(t *testing.T) {
	view := &fakeView{path: "data.csv", size: 2048, mtime: time.Unix(1700000000, 0)}

	tests := []struct {
		name string
		rule types.Rule
		want bool
	}{
		{"size_eq", rule("size", "=", 2048), true},
		{"size_neq", rule("size", "!=", 100), true},
		{"size_gt", rule("size", ">", 1024), true},
		{"size_gte_exact", rule("size", ">=", 2048), true},
		{"size_lt_false", rule("size", "<", 2048), false},
		{"size_lte", rule("size", "<=", 4096), true},
		{"mtime_after", rule("mtime", ">", 1600000000), true},
		{"mtime_before_false", rule("mtime", "<", 1600000000), false},
		{"size_string_value", rule("size", ">", "1000"), true},
		{"size_garbage_value", rule("size", ">", "lots"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalOne(t, view, tt.rule))
		})
	}
}

func TestStringOperators(t *testing.T) {
	view := &fakeView{path: "internal/server/handler.go"}

	tests := []struct {
		name string
		rule types.Rule
		want bool
	}{
		{"contains", rule("path", "contains", "server"), true},
		{"notContains", rule("path", "notContains", "client"), true},
		{"startsWith", rule("path", "startsWith", "internal/"), true},
		{"notStartsWith_false", rule("path", "notStartsWith", "internal/"), false},
		{"endsWith", rule("basename", "endsWith", ".go"), true},
		{"notEndsWith", rule("basename", "notEndsWith", ".md"), true},
		{"oneOf", rule("extension", "oneOf", []interface{}{"go", "rs"}), true},
		{"notOneOf_false", rule("extension", "notOneOf", []interface{}{"go"}), false},
		{"glob_doublestar", rule("path", "glob", "internal/**/*.go"), true},
		{"glob_single_star_no_slash", rule("path", "glob", "internal/*.go"), false},
		{"fnmatch", rule("basename", "fnmatch", "handler.*"), true},
		{"regex", rule("path", "regex", `^internal/.+\.go$`), true},
		{"notRegex", rule("path", "notRegex", `_test\.go$`), true},
		{"length", rule("basename", "length", 10), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalOne(t, view, tt.rule))
		})
	}
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		op       string
		want     bool
	}{
		{"ascii", "plain text", "isAscii", true},
		{"non_ascii", "café", "isAscii", false},
		{"json_object", `{"name": "test"}`, "isJson", true},
		{"json_invalid", `{"name":`, "isJson", false},
		{"url", "https://example.com/path", "isUrl", true},
		{"url_bare_word", "not a url", "isUrl", false},
		{"uuid", "e1cb1c2a-9f3b-4a7e-8d0b-2f6a5c9c1b1d", "isUuid", true},
		{"uuid_invalid", "zzz-not-a-uuid", "isUuid", false},
		{"ulid", "01ARZ3NDEKTSV4RRFFQ69G5FAV", "isUlid", true},
		{"ulid_invalid", "01ARZ3NDEKTSV4RRFFQ69G5FA", "isUlid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := &fakeView{path: "value.txt", contents: []byte(tt.contents)}
			assert.Equal(t, tt.want, evalOne(t, view, rule("contents", tt.op, nil)))
		})
	}
}

func TestContentsSlice(t *testing.T) {
	head := make([]byte, rules.ContentsSliceSize)
	for i := range head {
		head[i] = 'a'
	}
	contents := append(append([]byte{}, head...), []byte("NEEDLE")...)
	view := &fakeView{path: "big.txt", contents: contents}

	// The needle sits beyond the slice window
	assert.False(t, evalOne(t, view, rule("contents_slice", "contains", "NEEDLE")))
	assert.True(t, evalOne(t, view, rule("contents", "contains", "NEEDLE")))
	assert.True(t, evalOne(t, view, rule("contents_slice", "startsWith", "aaa")))
}

func TestMimeTypeField(t *testing.T) {
	view := &fakeView{path: "img.png", mime: "image/png"}

	assert.True(t, evalOne(t, view, rule("mimeType", "=", "image/png")))
	assert.True(t, evalOne(t, view, rule("mimeType", "startsWith", "image/")))
}

func TestUnknownFieldAndOperator(t *testing.T) {
	view := &fakeView{path: "a.txt"}

	assert.False(t, evalOne(t, view, rule("nonsense", "=", "a.txt")))
	assert.False(t, evalOne(t, view, rule("path", "resembles", "a.txt")))
}

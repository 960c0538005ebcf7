package rules

import (
	"path"
	"regexp"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	gglob "github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/types"
)

// FileView is the read-only view of a file the engine evaluates rules
// against. Contents is lazy: it is only called when a rule references the
// contents or contents_slice field, so metadata-only rule sets never
// trigger a read.
type FileView interface {
	Path() string
	Size() int64
	MTime() time.Time
	MimeType() string
	IsBinary() bool
	Contents() ([]byte, error)
}

// ContentsSliceSize bounds how much of a file the contents_slice field sees
const ContentsSliceSize = 1024

// Engine evaluates rule groups against file views. Compiled regex and glob
// patterns are memoized across evaluations.
type Engine struct {
	logger zerolog.Logger

	mu      sync.Mutex
	regexes map[string]*regexp.Regexp
	globs   map[string]gglob.Glob
}

// NewEngine creates a rule engine
func NewEngine() *Engine {
	return &Engine{
		logger:  logging.GetLogger("rules.engine"),
		regexes: make(map[string]*regexp.Regexp),
		globs:   make(map[string]gglob.Glob),
	}
}

// Matches decides whether a file is selected. Precedence, first hit wins:
// always.exclude, always.include, global exclude groups, then the rule
// group itself. An empty rule group matches everything, so a profile with
// only always lists or global excludes behaves as include-all-except.
func (e *Engine) Matches(view FileView, group, globalExclude types.RuleGroup, always types.Always) bool {
	p := view.Path()

	for _, excluded := range always.Exclude {
		if excluded == p {
			return false
		}
	}
	for _, included := range always.Include {
		if included == p {
			return true
		}
	}

	for _, set := range globalExclude {
		if e.setMatches(view, set) {
			e.logger.Debug().Str("path", p).Msg("File hit global exclude")
			return false
		}
	}

	if len(group) == 0 {
		return true
	}
	for _, set := range group {
		if e.setMatches(view, set) {
			return true
		}
	}
	return false
}

// setMatches reports whether every rule in the set matches (AND)
func (e *Engine) setMatches(view FileView, set types.RuleSet) bool {
	for _, rule := range set {
		if !e.ruleMatches(view, rule) {
			return false
		}
	}
	return true
}

// ruleMatches evaluates a single rule. A malformed pattern or an unknown
// field/operator fails the rule rather than aborting evaluation.
func (e *Engine) ruleMatches(view FileView, rule types.Rule) bool {
	subject, numeric, isNumeric, ok := e.fieldValue(view, rule.Field)
	if !ok {
		e.logger.Debug().Str("field", rule.Field).Msg("Unknown or unreadable rule field")
		return false
	}
	return e.apply(rule, subject, numeric, isNumeric)
}

// fieldValue extracts the value of a rule field from the view. Numeric
// fields (size, mtime) also return their numeric form for ordering
// operators. Contents fields on binary files are treated as unreadable.
func (e *Engine) fieldValue(view FileView, field string) (string, float64, bool, bool) {
	p := view.Path()

	switch field {
	case "path":
		return p, 0, false, true
	case "dirname":
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		return dir, 0, false, true
	case "basename":
		return path.Base(p), 0, false, true
	case "extension":
		ext := path.Ext(p)
		if ext != "" {
			ext = ext[1:]
		}
		return ext, 0, false, true
	case "filename":
		base := path.Base(p)
		ext := path.Ext(base)
		return base[:len(base)-len(ext)], 0, false, true
	case "folder":
		dir := path.Dir(p)
		if dir == "." {
			return "", 0, false, true
		}
		return path.Base(dir), 0, false, true
	case "size":
		return "", float64(view.Size()), true, true
	case "mtime":
		return "", float64(view.MTime().Unix()), true, true
	case "mimeType":
		return view.MimeType(), 0, false, true
	case "contents", "contents_slice":
		if view.IsBinary() {
			// Binary contents never satisfy a contents rule
			return "", 0, false, false
		}
		data, err := view.Contents()
		if err != nil {
			e.logger.Debug().Err(err).Str("path", p).Msg("Content read failed during rule evaluation")
			return "", 0, false, false
		}
		if field == "contents_slice" && len(data) > ContentsSliceSize {
			data = data[:ContentsSliceSize]
		}
		return string(data), 0, false, true
	default:
		return "", 0, false, false
	}
}

// compileRegex returns a memoized compiled regex, or nil when malformed
func (e *Engine) compileRegex(pattern string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()

	if re, seen := e.regexes[pattern]; seen {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		e.logger.Debug().Err(err).Str("pattern", pattern).Msg("Malformed regex pattern")
		re = nil
	}
	e.regexes[pattern] = re
	return re
}

// compileGlob returns a memoized compiled fnmatch glob, or nil when malformed
func (e *Engine) compileGlob(pattern string) gglob.Glob {
	e.mu.Lock()
	defer e.mu.Unlock()

	if g, seen := e.globs[pattern]; seen {
		return g
	}
	g, err := gglob.Compile(pattern)
	if err != nil {
		e.logger.Debug().Err(err).Str("pattern", pattern).Msg("Malformed fnmatch pattern")
		g = nil
	}
	e.globs[pattern] = g
	return g
}

// matchDoublestar evaluates a glob operator pattern against a subject path
func (e *Engine) matchDoublestar(pattern, subject string) bool {
	matched, err := doublestar.Match(pattern, subject)
	if err != nil {
		e.logger.Debug().Err(err).Str("pattern", pattern).Msg("Malformed glob pattern")
		return false
	}
	return matched
}

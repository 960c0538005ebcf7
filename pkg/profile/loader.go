// Package profile loads and resolves selection profiles. Profiles are YAML
// or JSON documents that may extend a base profile; resolution flattens the
// extends chain into a single profile and rejects cycles.
package profile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/gregpriday/copytree/pkg/types"
)

// profileExtensions lists the document forms the loader accepts, in
// lookup order
var profileExtensions = []string{".yaml", ".yml", ".json"}

// Loader resolves profile identifiers against a scan root. Bare names are
// searched in <root>/.copytree/, falling back to the built-in default.
type Loader struct {
	root   string
	logger zerolog.Logger
}

// NewLoader creates a loader for the given scan root
func NewLoader(root string) *Loader {
	return &Loader{
		root:   root,
		logger: logging.GetLogger("profile.loader"),
	}
}

// Load resolves an identifier (a file path or a bare profile name) into a
// fully resolved profile: extends chains flattened, arrays merged, and the
// extends key stripped.
func (l *Loader) Load(identifier string) (*types.Profile, error) {
	done := logging.LogOperationStart(l.logger, "load profile "+identifier)
	defer done()

	return l.resolve(identifier, nil)
}

// resolve loads one profile and recursively resolves its base. The visited
// chain carries the canonical identities already being resolved so a
// profile reappearing in its own ancestry fails with the full chain.
func (l *Loader) resolve(identifier string, visited []string) (*types.Profile, error) {
	identity, raw, err := l.read(identifier)
	if err != nil {
		return nil, err
	}

	for _, seen := range visited {
		if seen == identity {
			chain := append(append([]string{}, visited...), identity)
			return nil, errors.Newf(errors.ErrProfileCycle,
				"circular profile extension: %s", strings.Join(chain, " -> ")).
				WithDetail("chain", chain)
		}
	}
	visited = append(visited, identity)

	profile, err := parse(identity, raw)
	if err != nil {
		return nil, err
	}

	if profile.Extends == "" {
		return profile, nil
	}

	baseIdentifier := profile.Extends
	// An extends path is taken relative to the extending document
	if strings.ContainsRune(baseIdentifier, '/') && !filepath.IsAbs(baseIdentifier) &&
		identity != builtinIdentity {
		baseIdentifier = filepath.Join(filepath.Dir(identity), baseIdentifier)
	}

	base, err := l.resolve(baseIdentifier, visited)
	if err != nil {
		return nil, err
	}

	merged := Merge(base, profile)
	l.logger.Debug().
		Str("profile", identity).
		Str("extends", profile.Extends).
		Int("rules", len(merged.Rules)).
		Msg("Resolved profile extension")
	return merged, nil
}

// read locates the profile document and returns its canonical identity
// plus raw bytes. The built-in default is used when no document named
// "default" exists on disk.
func (l *Loader) read(identifier string) (string, []byte, error) {
	if identifier == "" {
		identifier = DefaultProfileName
	}

	// Explicit path (absolute, relative, or with a recognized extension)
	if looksLikePath(identifier) {
		path := identifier
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.root, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", nil, errors.Wrapf(err, errors.ErrProfileNotFound,
				"profile %q not readable", identifier)
		}
		return path, raw, nil
	}

	// Bare name: search the profile directory
	for _, ext := range profileExtensions {
		path := filepath.Join(l.root, ".copytree", identifier+ext)
		raw, err := os.ReadFile(path)
		if err == nil {
			return path, raw, nil
		}
		if !os.IsNotExist(err) {
			return "", nil, errors.Wrapf(err, errors.ErrProfileNotFound,
				"profile %q not readable", identifier)
		}
	}

	if identifier == DefaultProfileName {
		return builtinIdentity, []byte(builtinDefault), nil
	}

	return "", nil, errors.Newf(errors.ErrProfileNotFound,
		"profile %q not found under %s", identifier, filepath.Join(l.root, ".copytree"))
}

func looksLikePath(identifier string) bool {
	if filepath.IsAbs(identifier) || strings.ContainsRune(identifier, '/') {
		return true
	}
	ext := filepath.Ext(identifier)
	for _, known := range profileExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// parse decodes and validates a raw profile document. JSON documents
// decode through the YAML parser.
func parse(identity string, raw []byte) (*types.Profile, error) {
	var profile types.Profile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return nil, errors.Wrapf(err, errors.ErrProfileParse, "parsing profile %s", identity)
	}
	if err := validate(&profile); err != nil {
		return nil, errors.Wrapf(err, errors.ErrProfileParse, "invalid profile %s", identity)
	}
	return &profile, nil
}

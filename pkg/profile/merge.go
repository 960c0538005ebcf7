package profile

import (
	"fmt"

	"github.com/gregpriday/copytree/pkg/types"
)

// Merge combines a resolved base profile with the child extending it.
// Concatenation arrays keep base entries first, always lists are
// deduplicated unions, scalar keys from the child win, and the extends
// marker is stripped from the result.
func Merge(base, child *types.Profile) *types.Profile {
	merged := &types.Profile{
		Name:               child.Name,
		Rules:              concatGroups(base.Rules, child.Rules),
		GlobalExcludeRules: concatGroups(base.GlobalExcludeRules, child.GlobalExcludeRules),
		External:           append(append([]types.ExternalSource{}, base.External...), child.External...),
		Transforms:         append(append([]types.TransformConfig{}, base.Transforms...), child.Transforms...),
		Always: types.Always{
			Include: unionStrings(base.Always.Include, child.Always.Include),
			Exclude: unionStrings(base.Always.Exclude, child.Always.Exclude),
		},
	}
	if merged.Name == "" {
		merged.Name = base.Name
	}
	return merged
}

func concatGroups(base, child types.RuleGroup) types.RuleGroup {
	if len(base) == 0 && len(child) == 0 {
		return nil
	}
	out := make(types.RuleGroup, 0, len(base)+len(child))
	out = append(out, base...)
	out = append(out, child...)
	return out
}

// unionStrings appends b's entries after a's, dropping duplicates
func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// knownFields and knownOperators define the closed rule vocabulary
var knownFields = map[string]struct{}{
	"path": {}, "dirname": {}, "basename": {}, "extension": {}, "filename": {},
	"contents": {}, "contents_slice": {}, "size": {}, "mtime": {},
	"mimeType": {}, "folder": {},
}

var knownOperators = map[string]struct{}{
	"=": {}, "!=": {}, ">": {}, ">=": {}, "<": {}, "<=": {},
	"oneOf": {}, "notOneOf": {}, "glob": {}, "fnmatch": {},
	"regex": {}, "notRegex": {},
	"contains": {}, "notContains": {}, "startsWith": {}, "notStartsWith": {},
	"endsWith": {}, "notEndsWith": {}, "length": {},
	"isAscii": {}, "isJson": {}, "isUrl": {}, "isUuid": {}, "isUlid": {},
}

// validate rejects rules outside the fixed vocabulary so typos fail at
// load time instead of silently never matching
func validate(p *types.Profile) error {
	for _, group := range []types.RuleGroup{p.Rules, p.GlobalExcludeRules} {
		for _, set := range group {
			for _, rule := range set {
				if _, ok := knownFields[rule.Field]; !ok {
					return fmt.Errorf("unknown rule field %q", rule.Field)
				}
				if _, ok := knownOperators[rule.Operator]; !ok {
					return fmt.Errorf("unknown rule operator %q", rule.Operator)
				}
			}
		}
	}
	for _, ext := range p.External {
		if ext.Source == "" {
			return fmt.Errorf("external source requires a source path")
		}
	}
	for _, tr := range p.Transforms {
		if tr.Transformer == "" {
			return fmt.Errorf("transform entry requires a transformer name")
		}
	}
	return nil
}

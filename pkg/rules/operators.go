package rules

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/gregpriday/copytree/pkg/types"
)

// apply evaluates the rule's operator against the extracted field value
func (e *Engine) apply(rule types.Rule, subject string, numeric float64, isNumeric bool) bool {
	switch rule.Operator {
	case "=":
		if isNumeric {
			want, ok := valueToFloat(rule.Value)
			return ok && numeric == want
		}
		return subject == valueToString(rule.Value)
	case "!=":
		if isNumeric {
			want, ok := valueToFloat(rule.Value)
			return ok && numeric != want
		}
		return subject != valueToString(rule.Value)
	case ">", ">=", "<", "<=":
		lhs := numeric
		if !isNumeric {
			parsed, err := strconv.ParseFloat(subject, 64)
			if err != nil {
				return false
			}
			lhs = parsed
		}
		want, ok := valueToFloat(rule.Value)
		if !ok {
			return false
		}
		switch rule.Operator {
		case ">":
			return lhs > want
		case ">=":
			return lhs >= want
		case "<":
			return lhs < want
		default:
			return lhs <= want
		}
	case "oneOf":
		return containsString(valueToStrings(rule.Value), subject)
	case "notOneOf":
		return !containsString(valueToStrings(rule.Value), subject)
	case "glob":
		return e.matchDoublestar(valueToString(rule.Value), subject)
	case "fnmatch":
		g := e.compileGlob(valueToString(rule.Value))
		return g != nil && g.Match(subject)
	case "regex":
		re := e.compileRegex(valueToString(rule.Value))
		return re != nil && re.MatchString(subject)
	case "notRegex":
		re := e.compileRegex(valueToString(rule.Value))
		return re != nil && !re.MatchString(subject)
	case "contains":
		return strings.Contains(subject, valueToString(rule.Value))
	case "notContains":
		return !strings.Contains(subject, valueToString(rule.Value))
	case "startsWith":
		return strings.HasPrefix(subject, valueToString(rule.Value))
	case "notStartsWith":
		return !strings.HasPrefix(subject, valueToString(rule.Value))
	case "endsWith":
		return strings.HasSuffix(subject, valueToString(rule.Value))
	case "notEndsWith":
		return !strings.HasSuffix(subject, valueToString(rule.Value))
	case "length":
		want, ok := valueToFloat(rule.Value)
		return ok && float64(utf8.RuneCountInString(subject)) == want
	case "isAscii":
		return isASCII(subject)
	case "isJson":
		return json.Valid([]byte(subject))
	case "isUrl":
		u, err := url.ParseRequestURI(strings.TrimSpace(subject))
		return err == nil && u.Scheme != "" && u.Host != ""
	case "isUuid":
		_, err := uuid.Parse(strings.TrimSpace(subject))
		return err == nil
	case "isUlid":
		_, err := ulid.ParseStrict(strings.TrimSpace(subject))
		return err == nil
	default:
		e.logger.Debug().Str("operator", rule.Operator).Msg("Unknown rule operator")
		return false
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// valueToString renders a rule value for string operators
func valueToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// valueToFloat coerces a rule value for numeric operators
func valueToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// valueToStrings coerces a rule value for membership operators
func valueToStrings(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, valueToString(item))
		}
		return out
	case string:
		return []string{t}
	default:
		return nil
	}
}

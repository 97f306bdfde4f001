package component

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tetherlab/tether/core/fault"
)

// Validator rule names. Rules travel by name in introspection payloads and
// are rebuilt on the consuming side from this shared table.
const (
	RuleMin       = "min"
	RuleMax       = "max"
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RulePattern   = "pattern"
	RuleNotEmpty  = "not_empty"
	RuleOneOf     = "one_of"
)

// KnownRule reports whether name is a recognized validator rule.
func KnownRule(name string) bool {
	switch name {
	case RuleMin, RuleMax, RuleMinLength, RuleMaxLength, RulePattern, RuleNotEmpty, RuleOneOf:
		return true
	}
	return false
}

// Check validates a value against a single rule. A nil return means the
// value passed.
func Check(v Validator, attribute string, value any) error {
	ok, msg := checkRule(v, value)
	if ok {
		return nil
	}
	if v.Message != "" {
		msg = v.Message
	}
	return fault.Validation(attribute, v.Rule, msg)
}

func checkRule(v Validator, value any) (bool, string) {
	switch v.Rule {
	case RuleMin:
		n, nok := toFloat(value)
		limit, lok := toFloat(v.Value)
		if !nok || !lok {
			return false, "value is not numeric"
		}
		return n >= limit, fmt.Sprintf("must be at least %v", v.Value)

	case RuleMax:
		n, nok := toFloat(value)
		limit, lok := toFloat(v.Value)
		if !nok || !lok {
			return false, "value is not numeric"
		}
		return n <= limit, fmt.Sprintf("must be at most %v", v.Value)

	case RuleMinLength:
		s, sok := value.(string)
		limit, lok := toFloat(v.Value)
		if !sok || !lok {
			return false, "value is not a string"
		}
		return float64(len(s)) >= limit, fmt.Sprintf("must be at least %v characters", v.Value)

	case RuleMaxLength:
		s, sok := value.(string)
		limit, lok := toFloat(v.Value)
		if !sok || !lok {
			return false, "value is not a string"
		}
		return float64(len(s)) <= limit, fmt.Sprintf("must be at most %v characters", v.Value)

	case RulePattern:
		s, sok := value.(string)
		pattern, pok := v.Value.(string)
		if !sok || !pok {
			return false, "value is not a string"
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid pattern: %v", err)
		}
		return re.MatchString(s), fmt.Sprintf("must match pattern %s", pattern)

	case RuleNotEmpty:
		s, sok := value.(string)
		if !sok {
			return false, "value is not a string"
		}
		return strings.TrimSpace(s) != "", "must not be empty"

	case RuleOneOf:
		allowed := toStringSlice(v.Value)
		s := fmt.Sprintf("%v", value)
		for _, a := range allowed {
			if s == a {
				return true, ""
			}
		}
		return false, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", "))

	default:
		return false, fmt.Sprintf("unknown validator rule %q", v.Rule)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toStringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	default:
		return nil
	}
}

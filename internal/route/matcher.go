package route

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPattern indicates a path pattern that cannot be compiled.
var ErrInvalidPattern = errors.New("invalid route pattern")

// segment is one element of a compiled pattern.
type segment struct {
	literal   string
	paramName string
	isParam   bool
}

// Pattern is a compiled path pattern. Patterns are plain segment lists
// (no regex): each segment is either a literal or a :name placeholder
// capturing exactly one inbound segment. There are no cross-segment
// wildcards.
type Pattern struct {
	raw      string
	segments []segment
	params   int
}

// CompilePattern parses a path pattern like /users/:id/orders.
func CompilePattern(raw string) (*Pattern, error) {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, raw)
	}

	parts := strings.Split(strings.Trim(raw, "/"), "/")
	p := &Pattern{raw: raw}

	// "/" compiles to zero segments.
	if len(parts) == 1 && parts[0] == "" {
		return p, nil
	}

	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPattern, raw)
		}
		if strings.HasPrefix(part, ":") {
			name := part[1:]
			if name == "" {
				return nil, fmt.Errorf("%w: %q has an unnamed placeholder", ErrInvalidPattern, raw)
			}
			p.segments = append(p.segments, segment{paramName: name, isParam: true})
			p.params++
			continue
		}
		if strings.Contains(part, ":") {
			return nil, fmt.Errorf("%w: %q mixes literal and placeholder in one segment", ErrInvalidPattern, raw)
		}
		p.segments = append(p.segments, segment{literal: part})
	}

	return p, nil
}

// Match tests an inbound path against the pattern and captures
// placeholder values.
func (p *Pattern) Match(path string) (bool, map[string]string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		parts = nil
	}

	if len(parts) != len(p.segments) {
		return false, nil
	}

	var params map[string]string
	for i, seg := range p.segments {
		if seg.isParam {
			if parts[i] == "" {
				return false, nil
			}
			if params == nil {
				params = make(map[string]string, p.params)
			}
			params[seg.paramName] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return false, nil
		}
	}

	return true, params
}

// ParamCount returns the number of placeholders; fewer means more
// specific during resolution tiebreaks.
func (p *Pattern) ParamCount() int {
	return p.params
}

// String returns the raw pattern.
func (p *Pattern) String() string {
	return p.raw
}

// SubstitutePath fills :name placeholders in an upstream path template
// with captured parameter values. Placeholders without a captured value
// are left untouched.
func SubstitutePath(template string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(template, ":") {
		return template
	}

	parts := strings.Split(template, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, ":") {
			if value, found := params[part[1:]]; found {
				parts[i] = value
			}
		}
	}
	return strings.Join(parts, "/")
}

package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// OpType identifies a transform operation.
type OpType string

// The closed set of operation types.
const (
	OpSet     OpType = "set"
	OpRemove  OpType = "remove"
	OpRename  OpType = "rename"
	OpDefault OpType = "default"
	OpMap     OpType = "map"
)

// Operation is one step of a transform config. Which fields are required
// depends on the type:
//
//	set     path, value
//	remove  path
//	rename  path, newPath
//	default path, value
//	map     path, field
type Operation struct {
	Type    OpType `json:"op" yaml:"op"`
	Path    string `json:"path" yaml:"path"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	NewPath string `json:"newPath,omitempty" yaml:"newPath,omitempty"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
}

// Sentinel errors for transform failures.
var (
	// ErrInvalidConfig indicates the operation list failed schema
	// validation. Nothing was applied.
	ErrInvalidConfig = errors.New("invalid transform config")

	// ErrApplyFailed indicates an operation could not be applied to the
	// document (e.g. map over a non-array value).
	ErrApplyFailed = errors.New("transform apply failed")
)

// forbiddenSegments are path segments that must never be navigable,
// regardless of the host language's object model.
var forbiddenSegments = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// ConfigError reports which operation in the list is invalid.
type ConfigError struct {
	Index   int
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("transform config: operation %d: %s", e.Index, e.Message)
}

// Is reports whether the target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks the whole operation list against the closed schema.
// It fails fast: any invalid operation rejects the entire list, and
// Apply refuses to start until validation passes.
func Validate(ops []Operation) error {
	for i, op := range ops {
		if err := validateOp(op); err != nil {
			return &ConfigError{Index: i, Message: err.Error()}
		}
	}
	return nil
}

// validateOp checks a single operation.
func validateOp(op Operation) error {
	if err := validatePath(op.Path); err != nil {
		return fmt.Errorf("path: %w", err)
	}

	switch op.Type {
	case OpSet, OpDefault:
		if op.NewPath != "" || op.Field != "" {
			return fmt.Errorf("%s does not take newPath or field", op.Type)
		}
	case OpRemove:
		if op.Value != nil || op.NewPath != "" || op.Field != "" {
			return errors.New("remove takes only a path")
		}
	case OpRename:
		if err := validatePath(op.NewPath); err != nil {
			return fmt.Errorf("newPath: %w", err)
		}
		if op.Value != nil || op.Field != "" {
			return errors.New("rename takes only path and newPath")
		}
	case OpMap:
		if op.Field == "" {
			return errors.New("map requires a field")
		}
		if _, found := forbiddenSegments[op.Field]; found {
			return fmt.Errorf("field %q is forbidden", op.Field)
		}
		if op.Value != nil || op.NewPath != "" {
			return errors.New("map takes only path and field")
		}
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}

	return nil
}

// validatePath checks a dot-separated path for shape and forbidden
// segments.
func validatePath(path string) error {
	if path == "" {
		return errors.New("must not be empty")
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return fmt.Errorf("%q has an empty segment", path)
		}
		if _, found := forbiddenSegments[segment]; found {
			return fmt.Errorf("segment %q is forbidden", segment)
		}
	}
	return nil
}

// ParseConfig decodes a JSON operation list and validates it. Used by
// stores that persist transform configs as JSON documents.
func ParseConfig(data []byte) ([]Operation, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if err := Validate(ops); err != nil {
		return nil, err
	}
	return ops, nil
}

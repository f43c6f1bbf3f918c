package transform

import (
	"fmt"

	"github.com/apiconduit/conduit/internal/observability"
)

// Engine applies transform configs to documents.
type Engine struct {
	logger observability.Logger
}

// NewEngine creates a transform engine.
func NewEngine(logger observability.Logger) *Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Engine{logger: logger}
}

// Apply runs the operation list left-to-right against the document and
// returns the transformed result. The input document is never mutated.
// The list is validated up front; an invalid config rejects the whole
// list before any operation runs.
func (e *Engine) Apply(doc any, ops []Operation) (any, error) {
	if err := Validate(ops); err != nil {
		recordFailure("validate")
		return nil, err
	}
	if len(ops) == 0 {
		return doc, nil
	}

	result := deepCopy(doc)
	for i, op := range ops {
		var err error
		result, err = e.applyOp(result, op)
		if err != nil {
			recordFailure("apply")
			return nil, fmt.Errorf("operation %d (%s %s): %w", i, op.Type, op.Path, err)
		}
		recordOp(op.Type)
	}

	return result, nil
}

// applyOp dispatches a single operation against the (already copied)
// document.
func (e *Engine) applyOp(doc any, op Operation) (any, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		if doc == nil {
			root = make(map[string]any)
		} else {
			return nil, fmt.Errorf("%w: document root is not an object", ErrApplyFailed)
		}
	}

	segments := splitPath(op.Path)

	switch op.Type {
	case OpSet:
		parent, leaf := ensureParent(root, segments)
		parent[leaf] = deepCopy(op.Value)

	case OpRemove:
		if parent, leaf, found := parentOf(root, segments); found {
			delete(parent, leaf)
		}

	case OpRename:
		value, found := lookup(root, segments)
		if !found {
			break
		}
		parent, leaf, _ := parentOf(root, segments)
		delete(parent, leaf)
		newParent, newLeaf := ensureParent(root, splitPath(op.NewPath))
		newParent[newLeaf] = value

	case OpDefault:
		// Only absence matters: a present null, false, 0 or "" is kept.
		if _, found := lookup(root, segments); !found {
			parent, leaf := ensureParent(root, segments)
			parent[leaf] = deepCopy(op.Value)
		}

	case OpMap:
		value, found := lookup(root, segments)
		if !found {
			break
		}
		array, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: value at %q is not an array", ErrApplyFailed, op.Path)
		}
		projected := make([]any, len(array))
		for i, element := range array {
			if obj, isObj := element.(map[string]any); isObj {
				projected[i] = obj[op.Field]
			} else {
				projected[i] = element
			}
		}
		parent, leaf, _ := parentOf(root, segments)
		parent[leaf] = projected
	}

	return root, nil
}

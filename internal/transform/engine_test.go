package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, raw string) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestEngine_Apply_Set(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name string
		in   string
		op   Operation
		want string
	}{
		{
			name: "top level",
			in:   `{"a":1}`,
			op:   Operation{Type: OpSet, Path: "b", Value: "x"},
			want: `{"a":1,"b":"x"}`,
		},
		{
			name: "overwrite",
			in:   `{"a":1}`,
			op:   Operation{Type: OpSet, Path: "a", Value: float64(2)},
			want: `{"a":2}`,
		},
		{
			name: "creates intermediate objects",
			in:   `{}`,
			op:   Operation{Type: OpSet, Path: "a.b.c", Value: true},
			want: `{"a":{"b":{"c":true}}}`,
		},
		{
			name: "replaces scalar intermediate",
			in:   `{"a":5}`,
			op:   Operation{Type: OpSet, Path: "a.b", Value: float64(1)},
			want: `{"a":{"b":1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Apply(doc(t, tt.in), []Operation{tt.op})
			require.NoError(t, err)
			assert.Equal(t, doc(t, tt.want), got)
		})
	}
}

func TestEngine_Apply_Remove(t *testing.T) {
	engine := NewEngine(nil)

	got, err := engine.Apply(doc(t, `{"a":{"b":1,"c":2}}`), []Operation{
		{Type: OpRemove, Path: "a.b"},
	})
	require.NoError(t, err)
	assert.Equal(t, doc(t, `{"a":{"c":2}}`), got)

	// Removing an absent path is a no-op.
	got, err = engine.Apply(doc(t, `{"a":1}`), []Operation{
		{Type: OpRemove, Path: "x.y.z"},
	})
	require.NoError(t, err)
	assert.Equal(t, doc(t, `{"a":1}`), got)
}

func TestEngine_Apply_Rename(t *testing.T) {
	engine := NewEngine(nil)

	got, err := engine.Apply(doc(t, `{"user":{"name":"ada"}}`), []Operation{
		{Type: OpRename, Path: "user.name", NewPath: "user.displayName"},
	})
	require.NoError(t, err)
	assert.Equal(t, doc(t, `{"user":{"displayName":"ada"}}`), got)

	// Absent source is a no-op.
	got, err = engine.Apply(doc(t, `{"a":1}`), []Operation{
		{Type: OpRename, Path: "missing", NewPath: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, doc(t, `{"a":1}`), got)
}

func TestEngine_Apply_RenameRoundTripIsIdentity(t *testing.T) {
	engine := NewEngine(nil)
	input := doc(t, `{"a":{"b":[1,2,{"c":"d"}]},"e":null}`)

	got, err := engine.Apply(input, []Operation{
		{Type: OpRename, Path: "a.b", NewPath: "moved"},
		{Type: OpRename, Path: "moved", NewPath: "a.b"},
	})
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func TestEngine_Apply_Default(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name string
		in   string
		op   Operation
		want string
	}{
		{
			name: "absent path is written",
			in:   `{}`,
			op:   Operation{Type: OpDefault, Path: "retries", Value: float64(3)},
			want: `{"retries":3}`,
		},
		{
			name: "present null is kept",
			in:   `{"retries":null}`,
			op:   Operation{Type: OpDefault, Path: "retries", Value: float64(3)},
			want: `{"retries":null}`,
		},
		{
			name: "present false is kept",
			in:   `{"enabled":false}`,
			op:   Operation{Type: OpDefault, Path: "enabled", Value: true},
			want: `{"enabled":false}`,
		},
		{
			name: "present zero is kept",
			in:   `{"count":0}`,
			op:   Operation{Type: OpDefault, Path: "count", Value: float64(10)},
			want: `{"count":0}`,
		},
		{
			name: "present empty string is kept",
			in:   `{"name":""}`,
			op:   Operation{Type: OpDefault, Path: "name", Value: "anon"},
			want: `{"name":""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Apply(doc(t, tt.in), []Operation{tt.op})
			require.NoError(t, err)
			assert.Equal(t, doc(t, tt.want), got)
		})
	}
}

func TestEngine_Apply_Map(t *testing.T) {
	engine := NewEngine(nil)

	got, err := engine.Apply(doc(t, `{"items":[{"id":1,"name":"a"},{"id":2},"bare",7]}`), []Operation{
		{Type: OpMap, Path: "items", Field: "id"},
	})
	require.NoError(t, err)
	// Objects are projected to the field (absent field becomes null);
	// non-object elements pass through unchanged.
	assert.Equal(t, doc(t, `{"items":[1,2,"bare",7]}`), got)

	// Absent path is a no-op.
	got, err = engine.Apply(doc(t, `{"a":1}`), []Operation{
		{Type: OpMap, Path: "items", Field: "id"},
	})
	require.NoError(t, err)
	assert.Equal(t, doc(t, `{"a":1}`), got)

	// Present non-array fails.
	_, err = engine.Apply(doc(t, `{"items":{"id":1}}`), []Operation{
		{Type: OpMap, Path: "items", Field: "id"},
	})
	assert.ErrorIs(t, err, ErrApplyFailed)
}

func TestEngine_Apply_NeverMutatesInput(t *testing.T) {
	engine := NewEngine(nil)

	raw := `{"a":{"b":[1,2,3]},"keep":"x"}`
	input := doc(t, raw)
	snapshot := doc(t, raw)

	_, err := engine.Apply(input, []Operation{
		{Type: OpSet, Path: "a.b", Value: "replaced"},
		{Type: OpRemove, Path: "keep"},
		{Type: OpSet, Path: "new.deep.path", Value: float64(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, snapshot, input)
}

func TestEngine_Apply_SetValueIsCopied(t *testing.T) {
	engine := NewEngine(nil)

	value := map[string]any{"nested": []any{float64(1)}}
	got, err := engine.Apply(doc(t, `{}`), []Operation{
		{Type: OpSet, Path: "v", Value: value},
	})
	require.NoError(t, err)

	// Mutating the original value must not reach into the document.
	value["nested"].([]any)[0] = float64(99)
	assert.Equal(t, doc(t, `{"v":{"nested":[1]}}`), got)
}

func TestEngine_Apply_ForbiddenSegments(t *testing.T) {
	engine := NewEngine(nil)
	input := doc(t, `{"a":1}`)

	paths := []string{
		"__proto__",
		"a.__proto__.b",
		"constructor",
		"nested.prototype",
	}

	for _, path := range paths {
		_, err := engine.Apply(input, []Operation{{Type: OpSet, Path: path, Value: 1}})
		assert.ErrorIs(t, err, ErrInvalidConfig, path)
	}

	// Rename target and map field are covered too.
	_, err := engine.Apply(input, []Operation{{Type: OpRename, Path: "a", NewPath: "__proto__"}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = engine.Apply(input, []Operation{{Type: OpMap, Path: "a", Field: "constructor"}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// Fail-fast: nothing was applied.
	assert.Equal(t, doc(t, `{"a":1}`), input)
}

func TestEngine_Apply_InvalidConfigRejectsWholeList(t *testing.T) {
	engine := NewEngine(nil)
	input := doc(t, `{"a":1}`)

	// First op is valid, second is not; the document must be untouched
	// and no partial result returned.
	got, err := engine.Apply(input, []Operation{
		{Type: OpSet, Path: "b", Value: 1},
		{Type: OpType("explode"), Path: "c"},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, got)
	assert.Equal(t, doc(t, `{"a":1}`), input)
}

func TestEngine_Apply_EmptyOps(t *testing.T) {
	engine := NewEngine(nil)
	input := doc(t, `{"a":1}`)

	got, err := engine.Apply(input, nil)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func TestEngine_Apply_NilDocument(t *testing.T) {
	engine := NewEngine(nil)

	got, err := engine.Apply(nil, []Operation{{Type: OpSet, Path: "a", Value: "x"}})
	require.NoError(t, err)
	assert.Equal(t, doc(t, `{"a":"x"}`), got)
}

func TestEngine_Apply_NonObjectRoot(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.Apply([]any{float64(1)}, []Operation{{Type: OpSet, Path: "a", Value: 1}})
	assert.ErrorIs(t, err, ErrApplyFailed)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr bool
	}{
		{name: "valid set", op: Operation{Type: OpSet, Path: "a.b", Value: 1}},
		{name: "valid default null", op: Operation{Type: OpDefault, Path: "a"}},
		{name: "valid remove", op: Operation{Type: OpRemove, Path: "a"}},
		{name: "valid rename", op: Operation{Type: OpRename, Path: "a", NewPath: "b"}},
		{name: "valid map", op: Operation{Type: OpMap, Path: "a", Field: "id"}},
		{name: "empty path", op: Operation{Type: OpSet, Path: ""}, wantErr: true},
		{name: "empty segment", op: Operation{Type: OpSet, Path: "a..b"}, wantErr: true},
		{name: "unknown type", op: Operation{Type: "upsert", Path: "a"}, wantErr: true},
		{name: "rename missing newPath", op: Operation{Type: OpRename, Path: "a"}, wantErr: true},
		{name: "map missing field", op: Operation{Type: OpMap, Path: "a"}, wantErr: true},
		{name: "remove with value", op: Operation{Type: OpRemove, Path: "a", Value: 1}, wantErr: true},
		{name: "set with field", op: Operation{Type: OpSet, Path: "a", Field: "x"}, wantErr: true},
		{name: "rename with value", op: Operation{Type: OpRename, Path: "a", NewPath: "b", Value: 1}, wantErr: true},
		{name: "map with newPath", op: Operation{Type: OpMap, Path: "a", Field: "id", NewPath: "b"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]Operation{tt.op})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	ops, err := ParseConfig([]byte(`[{"op":"set","path":"a","value":1},{"op":"map","path":"items","field":"id"}]`))
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, OpSet, ops[0].Type)
	assert.Equal(t, "id", ops[1].Field)

	_, err = ParseConfig([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte(`[{"op":"set","path":"__proto__"}]`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	ops, err = ParseConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, ops)
}

package params

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(name string) map[string]any {
	return map[string]any{RefKey: name}
}

func TestResolve_ParamRef(t *testing.T) {
	p := Map{
		"status": "active",
		"ids":    []any{1, 2, 3},
		"filter": map[string]any{"a": 1},
		"none":   nil,
		"zero":   0,
	}

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"scalar", ref("status"), "active"},
		{"sequence", ref("ids"), []any{1, 2, 3}},
		{"mapping", ref("filter"), map[string]any{"a": 1}},
		{"explicit nil", ref("none"), nil},
		{"falsy", ref("zero"), 0},
		{"nested in sequence", []any{"status", ref("status")}, []any{"status", "active"}},
		{
			"nested in mapping",
			map[string]any{"column": "id", "values": ref("ids")},
			map[string]any{"column": "id", "values": []any{1, 2, 3}},
		},
		{"two-key mapping is not a ref", map[string]any{RefKey: "status", "x": 1}, map[string]any{RefKey: "status", "x": 1}},
		{"non-string name is not a ref", map[string]any{RefKey: 5}, map[string]any{RefKey: 5}},
		{"plain scalar", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.input, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_MissingRef(t *testing.T) {
	_, err := Resolve([]any{"id", ref("ids")}, Map{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParamNotFound))

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "ids", resErr.Name)
}

func TestResolveLenient(t *testing.T) {
	got := ResolveLenient([]any{"id", ref("ids")}, Map{})
	assert.Equal(t, []any{"id", nil}, got)
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	input := map[string]any{"values": ref("ids"), "label": "$who$"}
	_, err := Resolve(input, Map{"ids": []any{1}, "who": "me"})
	require.NoError(t, err)
	assert.Equal(t, ref("ids"), input["values"])
	assert.Equal(t, "$who$", input["label"])
}

func TestInterpolate(t *testing.T) {
	p := Map{
		"name":   "Ada",
		"count":  3,
		"ratio":  0.5,
		"big":    int64(9000000000),
		"num":    json.Number("12"),
		"list":   []any{1, 2},
		"nested": map[string]any{"a": 1},
	}

	tests := []struct {
		in   string
		want string
	}{
		{"hello $name$", "hello Ada"},
		{"$count$ items at $ratio$", "3 items at 0.5"},
		{"$big$", "9000000000"},
		{"$num$", "12"},
		{"absent $missing$ stays", "absent $missing$ stays"},
		{"list $list$ stays", "list $list$ stays"},
		{"map $nested$ stays", "map $nested$ stays"},
		{"no tokens", "no tokens"},
		{"costs $5", "costs $5"},
		{"%$name$%", "%Ada%"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.in, p))
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	p := Map{"status": "active", "ids": []any{1, 2}, "name": "x"}
	inputs := []any{
		[]any{"status", ref("status")},
		map[string]any{"column": "id", "values": ref("ids")},
		"name like $name$ and $missing$",
		[]any{[]any{ref("ids")}, "$name$"},
	}

	for _, in := range inputs {
		once, err := Resolve(in, p)
		require.NoError(t, err)
		twice, err := Resolve(once, p)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestSequence(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   []any
		wantOK bool
	}{
		{"any slice", []any{1, "a"}, []any{1, "a"}, true},
		{"int slice", []int{1, 2}, []any{1, 2}, true},
		{"string array", [2]string{"a", "b"}, []any{"a", "b"}, true},
		{"nil typed slice", []int(nil), []any{}, true},
		{"bytes", []byte("ab"), nil, false},
		{"scalar", 3, nil, false},
		{"nil", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sequence(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_TypedSliceParam(t *testing.T) {
	got, err := Resolve([]any{"id", ref("ids")}, Map{"ids": []int{4, 5}})
	require.NoError(t, err)
	assert.Equal(t, []any{"id", []any{4, 5}}, got)
}

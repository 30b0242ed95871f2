package revision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/press/revision"
)

func TestShallowDiff(t *testing.T) {
	before := map[string]any{
		"title":  "Old",
		"body":   "same",
		"tags":   []any{"a", "b"},
		"meta":   map[string]any{"x": 1.0},
		"views":  float64(3),
		"legacy": "removed later",
	}
	after := map[string]any{
		"title": "New",
		"body":  "same",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"x": 2.0},
		"views": 3,
		"extra": true,
	}

	d := revision.ShallowDiff(before, after)

	assert.Equal(t, revision.Diff{
		"title": {From: "Old", To: "New"},
		"meta":  {From: map[string]any{"x": 1.0}, To: map[string]any{"x": 2.0}},
		"extra": {From: nil, To: true},
	}, d)
	assert.NotContains(t, d, "legacy", "removed keys are not represented")
}

func TestShallowDiff_Identical(t *testing.T) {
	data := map[string]any{"a": 1, "b": []any{"x"}}
	assert.Empty(t, revision.ShallowDiff(data, data))
}

func TestShallowDiff_NilBefore(t *testing.T) {
	d := revision.ShallowDiff(nil, map[string]any{"a": 1})
	assert.Equal(t, revision.Diff{"a": {From: nil, To: 1}}, d)
}

func TestRevisionData(t *testing.T) {
	nested := &revision.Revision{Snapshot: map[string]any{
		"title": "T",
		"data":  map[string]any{"body": "x"},
	}}
	assert.Equal(t, map[string]any{"body": "x"}, nested.Data())

	flat := &revision.Revision{Snapshot: map[string]any{"body": "x"}}
	assert.Equal(t, map[string]any{"body": "x"}, flat.Data())

	malformed := &revision.Revision{Snapshot: map[string]any{"data": "not a document"}}
	assert.Equal(t, map[string]any{"data": "not a document"}, malformed.Data())

	assert.Equal(t, map[string]any{}, (&revision.Revision{}).Data())
}

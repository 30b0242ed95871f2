package catalog_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press/catalog"
)

var postSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"body":  {"type": "string"},
		"views": {"type": "integer"}
	},
	"required": ["body"]
}`)

func TestValidator_EmptySchema(t *testing.T) {
	v := catalog.NewValidator()
	assert.NoError(t, v.Validate(nil, map[string]any{"anything": 1}))
}

func TestValidator_GoValues(t *testing.T) {
	v := catalog.NewValidator()

	assert.NoError(t, v.Validate(postSchema, map[string]any{"body": "hi", "views": 3}))
	assert.Error(t, v.Validate(postSchema, map[string]any{"views": 3}))
	assert.Error(t, v.Validate(postSchema, map[string]any{"body": 12}))
}

func TestValidator_InvalidSchema(t *testing.T) {
	v := catalog.NewValidator()
	err := v.Validate(json.RawMessage(`{"type": 12}`), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema compilation error")
}

func TestCatalog_ValidateEntry(t *testing.T) {
	src := catalog.NewStaticSource(&catalog.Collection{SpaceID: "7", Handle: "posts", Schema: postSchema})
	c := catalog.New(src, catalog.Config{}, nil)
	ctx := context.Background()

	assert.NoError(t, c.ValidateEntry(ctx, "7", "posts", map[string]any{"body": "x"}))
	assert.ErrorIs(t, c.ValidateEntry(ctx, "7", "posts", map[string]any{}), catalog.ErrSchemaViolation)

	// Same handle in another space has no schema registered.
	assert.NoError(t, c.ValidateEntry(ctx, "8", "posts", map[string]any{}))
}

func TestCatalog_CachesUntilInvalidated(t *testing.T) {
	src := catalog.NewStaticSource(&catalog.Collection{SpaceID: "7", Handle: "posts"})
	c := catalog.New(src, catalog.Config{}, nil)
	ctx := context.Background()

	require.NoError(t, c.ValidateEntry(ctx, "7", "posts", map[string]any{}))

	src.Put(&catalog.Collection{SpaceID: "7", Handle: "posts", Schema: postSchema})
	assert.NoError(t, c.ValidateEntry(ctx, "7", "posts", map[string]any{}), "stale cache still used")

	c.Invalidate("7", "posts")
	assert.Error(t, c.ValidateEntry(ctx, "7", "posts", map[string]any{}))
}

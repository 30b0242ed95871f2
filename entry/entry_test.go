package entry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/press/entry"
)

func TestDueAndExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	e := &entry.Entry{}
	assert.False(t, e.Due(now))
	assert.False(t, e.Expired(now))

	e.PublishedAt = &past
	e.UnpublishAt = &future
	assert.True(t, e.Due(now))
	assert.False(t, e.Expired(now))

	e.UnpublishAt = &now
	assert.True(t, e.Expired(now), "unpublish time equal to now counts as expired")
}

func TestClone_DoesNotShareData(t *testing.T) {
	at := time.Now()
	e := &entry.Entry{Data: map[string]any{"title": "a"}, PublishedAt: &at}

	cp := e.Clone()
	cp.Data["title"] = "b"
	*cp.PublishedAt = at.Add(time.Hour)

	assert.Equal(t, "a", e.Data["title"])
	assert.Equal(t, at, *e.PublishedAt)
}

func TestClone_DoesNotShareNestedData(t *testing.T) {
	e := &entry.Entry{Data: map[string]any{
		"seo":  map[string]any{"title": "old"},
		"tags": []any{"a", map[string]any{"k": "v"}},
	}}

	cp := e.Clone()
	cp.Data["seo"].(map[string]any)["title"] = "new"
	tags := cp.Data["tags"].([]any)
	tags[0] = "z"
	tags[1].(map[string]any)["k"] = "w"

	assert.Equal(t, "old", e.Data["seo"].(map[string]any)["title"])
	assert.Equal(t, []any{"a", map[string]any{"k": "v"}}, e.Data["tags"])

	snap := e.Snapshot()
	e.Data["seo"].(map[string]any)["title"] = "changed"
	assert.Equal(t, map[string]any{"title": "old"}, snap["data"].(map[string]any)["seo"])
}

func TestCloneData_Nil(t *testing.T) {
	assert.Nil(t, entry.CloneData(nil))
	assert.Equal(t, 3, entry.CloneValue(3))
}

func TestSnapshot(t *testing.T) {
	e := &entry.Entry{Title: "Hello", Slug: "hello", Data: map[string]any{"body": "x"}}

	snap := e.Snapshot()
	e.Data["body"] = "changed"

	assert.Equal(t, "Hello", snap["title"])
	assert.Equal(t, map[string]any{"body": "x"}, snap["data"])
}

func TestStatusValid(t *testing.T) {
	assert.True(t, entry.StatusArchived.Valid())
	assert.False(t, entry.Status("unpublished").Valid())
}

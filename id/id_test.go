package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press/id"
)

func TestNew_Prefixes(t *testing.T) {
	cases := map[id.Prefix]func() id.ID{
		id.PrefixEntry:    id.NewEntryID,
		id.PrefixRevision: id.NewRevisionID,
		id.PrefixDelivery: id.NewDeliveryID,
		id.PrefixDLQ:      id.NewDLQID,
		id.PrefixEndpoint: id.NewEndpointID,
		id.PrefixAudit:    id.NewAuditID,
	}

	for prefix, gen := range cases {
		got := gen()
		assert.Equal(t, prefix, got.Prefix())
		assert.True(t, strings.HasPrefix(got.String(), string(prefix)+"_"))
	}
}

func TestParseWithPrefix_RejectsOtherKind(t *testing.T) {
	rev := id.NewRevisionID()

	_, err := id.ParseEntryID(rev.String())
	require.Error(t, err)

	parsed, err := id.ParseRevisionID(rev.String())
	require.NoError(t, err)
	assert.Equal(t, rev, parsed)
}

func TestParseOptional_Empty(t *testing.T) {
	got, err := id.ParseOptional("", id.PrefixEndpoint)
	require.NoError(t, err)
	assert.True(t, got.IsNil())
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		ID    id.ID `json:"id"`
		Empty id.ID `json:"empty"`
	}

	in := wrapper{ID: id.NewEntryID()}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out wrapper
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, out.Empty.IsNil())
}

func TestScan(t *testing.T) {
	want := id.NewDeliveryID()

	var got id.ID
	require.NoError(t, got.Scan(want.String()))
	assert.Equal(t, want, got)

	require.NoError(t, got.Scan(nil))
	assert.True(t, got.IsNil())

	assert.Error(t, got.Scan(42))
}

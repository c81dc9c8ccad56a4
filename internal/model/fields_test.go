package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_SetKeepsOrderAndReplaces(t *testing.T) {
	var f Fields
	f = f.Set("latitude", 37.7749)
	f = f.Set("longitude", -122.4194)
	f = f.Set("latitude", 1.5)

	assert.Equal(t, []string{"latitude", "longitude"}, f.Keys())
	v, ok := f.Get("latitude")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = f.Get("altitude")
	assert.False(t, ok)
}

func TestFields_MarshalJSONPreservesOrder(t *testing.T) {
	f := NewFields(Field{"zeta", 1}, Field{"alpha", "x"}, Field{"mid", true})

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"x","mid":true}`, string(b))
}

func TestFields_EmptyMarshalsToObject(t *testing.T) {
	b, err := json.Marshal(DecodedMessage{PacketType: PacketTypeUnknown})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"fields":{}`)
}

package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/psk"
)

func TestNew_DecodesAndExpandsOnce(t *testing.T) {
	table, err := New([]Entry{
		{Name: "LongFast", Key: "AQ=="},
		{Name: "Primary", Key: "MDEyMzQ1Njc4OWFiY2RlZg=="}, // "0123456789abcdef"
	})
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	lf, ok := table.Lookup("LongFast")
	require.True(t, ok)
	assert.Equal(t, []byte{1}, lf.PSK)
	assert.Equal(t, psk.DefaultKey, lf.Key)
	assert.Equal(t, uint32(8), lf.Hash)

	pr, ok := table.Lookup("Primary")
	require.True(t, ok)
	assert.Equal(t, []byte("0123456789abcdef"), pr.Key)
	assert.Equal(t, []string{"LongFast", "Primary"}, table.Names())
}

func TestNew_SkipsInvalidEntries(t *testing.T) {
	table, err := New([]Entry{
		{Name: "BadChannel", Key: "not-valid-base64!!!"},
		{Name: "", Key: "AQ=="},
		{Name: "Good", Key: "AQ=="},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Contains(t, err.Error(), "BadChannel")

	_, ok := table.Lookup("BadChannel")
	assert.False(t, ok)
	_, ok = table.Lookup("Good")
	assert.True(t, ok)
}

func TestNew_Empty(t *testing.T) {
	table, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	_, ok := table.Lookup("LongFast")
	assert.False(t, ok)
}

func TestNew_DuplicateKeepsPosition(t *testing.T) {
	table, err := New([]Entry{
		{Name: "A", Key: "AQ=="},
		{Name: "B", Key: "AQ=="},
		{Name: "A", Key: "Ag=="},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, table.Names())
	a, _ := table.Lookup("A")
	assert.Equal(t, []byte{2}, a.PSK)
}

func TestResolve_NameOrHash(t *testing.T) {
	table, err := New([]Entry{{Name: "LongFast", Key: "AQ=="}})
	require.NoError(t, err)

	key, ok := table.Resolve("LongFast")
	require.True(t, ok)
	assert.Equal(t, psk.DefaultKey, key)

	key, ok = table.Resolve("8")
	require.True(t, ok)
	assert.Equal(t, psk.DefaultKey, key)

	_, ok = table.Resolve("MediumSlow")
	assert.False(t, ok)
	_, ok = table.Resolve("9")
	assert.False(t, ok)
}

func TestByHash_IgnoresUnencryptedChannels(t *testing.T) {
	table, err := New([]Entry{{Name: "Open", Key: "AA=="}})
	require.NoError(t, err)

	open, ok := table.Lookup("Open")
	require.True(t, ok)
	assert.Nil(t, open.Key)

	_, ok = table.ByHash(open.Hash)
	assert.False(t, ok)
}

func TestNilTable(t *testing.T) {
	var table *Table
	_, ok := table.Lookup("x")
	assert.False(t, ok)
	_, ok = table.ByHash(8)
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

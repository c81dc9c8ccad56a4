// Package keys holds the immutable channel key table built once from
// configuration and shared read-only by the decode pipeline.
package keys

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/psk"
)

var ErrInvalidKey = errors.New("invalid channel key")

// Entry is one configured channel with its base64 PSK.
type Entry struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// Channel is a resolved table row. Key is the expanded AES key and is nil
// for channels configured without encryption.
type Channel struct {
	Name string
	PSK  []byte
	Key  []byte
	Hash uint32
}

type Table struct {
	channels []Channel
	byName   map[string]int
}

// New decodes and expands every entry once. Invalid entries are skipped and
// reported together in the returned error; the table always holds every
// valid entry, in configuration order. A later duplicate name replaces the
// earlier key but keeps its position.
func New(entries []Entry) (*Table, error) {
	t := &Table{byName: make(map[string]int, len(entries))}
	var errs []error

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: empty channel name", ErrInvalidKey))
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(e.Key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w for channel %s: %v", ErrInvalidKey, name, err))
			continue
		}
		key, err := psk.Expand(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w for channel %s: %v", ErrInvalidKey, name, err))
			continue
		}

		ch := Channel{Name: name, PSK: raw, Key: key, Hash: psk.ChannelHash(name, key)}
		if i, ok := t.byName[name]; ok {
			t.channels[i] = ch
			continue
		}
		t.byName[name] = len(t.channels)
		t.channels = append(t.channels, ch)
	}

	return t, errors.Join(errs...)
}

// Lookup returns the channel configured under exactly this name.
func (t *Table) Lookup(name string) (Channel, bool) {
	if t == nil {
		return Channel{}, false
	}
	i, ok := t.byName[name]
	if !ok {
		return Channel{}, false
	}
	return t.channels[i], true
}

// Resolve accepts a channel name or a decimal channel hash and returns the
// expanded key. Names win over hashes; hash matches use configuration order.
func (t *Table) Resolve(nameOrHash string) ([]byte, bool) {
	if ch, ok := t.Lookup(nameOrHash); ok {
		return ch.Key, true
	}
	h, err := strconv.ParseUint(nameOrHash, 10, 32)
	if err != nil {
		return nil, false
	}
	if ch, ok := t.ByHash(uint32(h)); ok {
		return ch.Key, true
	}
	return nil, false
}

// ByHash returns the first channel, in configuration order, whose name and
// key fold to hash. Unencrypted channels never match.
func (t *Table) ByHash(hash uint32) (Channel, bool) {
	if t == nil {
		return Channel{}, false
	}
	for _, ch := range t.channels {
		if ch.Key != nil && ch.Hash == hash {
			return ch, true
		}
	}
	return Channel{}, false
}

// Entries returns the channels in configuration order. The slice is a copy.
func (t *Table) Entries() []Channel {
	if t == nil {
		return nil
	}
	out := make([]Channel, len(t.channels))
	copy(out, t.channels)
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.channels)
}

func (t *Table) Names() []string {
	names := make([]string, 0, t.Len())
	for _, ch := range t.Entries() {
		names = append(names, ch.Name)
	}
	return names
}

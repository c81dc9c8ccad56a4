package channel

import (
	"strings"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/keys"
)

const Unknown = "unknown"

// FromTopic extracts the channel name from a topic such as
// msh/US/2/e/LongFast/!abcd1234. The channel is the segment after the
// payload-kind segment (e, c or json); topics without one fall back to the
// fifth segment.
func FromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 1; i < len(parts)-1; i++ {
		switch parts[i] {
		case "e", "c", "json":
			if parts[i+1] != "" {
				return parts[i+1]
			}
		}
	}
	if len(parts) >= 5 && parts[4] != "" {
		return parts[4]
	}
	return Unknown
}

// NodeFromTopic returns the last topic segment, which is the gateway node id
// on status and envelope topics.
func NodeFromTopic(topic string) string {
	i := strings.LastIndexByte(topic, '/')
	if i < 0 || i == len(topic)-1 {
		return Unknown
	}
	return topic[i+1:]
}

type MatchKind string

const (
	MatchTopic    MatchKind = "topic"
	MatchEnvelope MatchKind = "envelope"
	MatchHash     MatchKind = "hash"
)

type Match struct {
	Name string
	Key  []byte
	By   MatchKind
}

// Resolver picks the key for an encrypted packet from the shared key table.
type Resolver struct {
	table *keys.Table
}

func NewResolver(table *keys.Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve tries, in order: the channel named by the topic, the channel id
// carried in the envelope, then the packet's channel hash against every
// configured channel in configuration order. Channels without a key never
// match.
func (r *Resolver) Resolve(topicChannel, envelopeChannel string, hash uint32) (Match, bool) {
	if ch, ok := r.table.Lookup(topicChannel); ok && ch.Key != nil {
		return Match{Name: ch.Name, Key: ch.Key, By: MatchTopic}, true
	}
	if envelopeChannel != "" && envelopeChannel != topicChannel {
		if ch, ok := r.table.Lookup(envelopeChannel); ok && ch.Key != nil {
			return Match{Name: ch.Name, Key: ch.Key, By: MatchEnvelope}, true
		}
	}
	if ch, ok := r.table.ByHash(hash); ok {
		return Match{Name: ch.Name, Key: ch.Key, By: MatchHash}, true
	}
	return Match{}, false
}

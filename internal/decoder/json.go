package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/channel"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/wire"
)

var errNotObject = errors.New("JSON payload is not an object")

// Gateways with JSON output enabled publish these type names.
var jsonTypes = map[string]string{
	"sendtext":  "TEXT_MESSAGE_APP",
	"text":      "TEXT_MESSAGE_APP",
	"position":  "POSITION",
	"nodeinfo":  "NODEINFO_APP",
	"telemetry": "TELEMETRY_APP",
}

// Top-level keys copied next to the payload fields.
var jsonExtraKeys = []string{"channel", "id", "sender", "timestamp"}

func (d *Decoder) decodeJSON(msg model.RawMessage) model.DecodedMessage {
	top, err := orderedObject(msg.Payload)
	if err != nil {
		d.log.Warn().Err(err).Str("topic", msg.Topic).Msg("invalid JSON payload")
		return model.DecodedMessage{
			PacketType: model.PacketTypeJSONError,
			Channel:    channel.FromTopic(msg.Topic),
			From:       model.UnknownNode,
			To:         model.UnknownNode,
			Timestamp:  d.receivedAt(msg),
			Fields:     model.NewFields(model.Field{Key: "error", Value: "Invalid JSON: " + err.Error()}),
			RawData:    msg.Payload,
		}
	}

	packetType := model.PacketTypeUnknown
	if t, ok := top.Get("type"); ok {
		if s, ok := t.(string); ok {
			packetType = s
			if mapped, ok := jsonTypes[strings.ToLower(s)]; ok {
				packetType = mapped
			}
		}
	}

	fields := model.Fields{}
	if p, ok := top.Get("payload"); ok {
		if obj, ok := p.(model.Fields); ok {
			fields = obj
		} else {
			fields = fields.Set("payload", p)
		}
	}
	for _, k := range jsonExtraKeys {
		if _, dup := fields.Get(k); dup {
			continue
		}
		if v, ok := top.Get(k); ok {
			fields = fields.Set(k, v)
		}
	}

	return model.DecodedMessage{
		PacketType:        packetType,
		Channel:           channel.FromTopic(msg.Topic),
		From:              jsonNode(top, "from"),
		To:                jsonNode(top, "to"),
		Timestamp:         d.receivedAt(msg),
		Fields:            fields,
		RawData:           msg.Payload,
		DecryptionSuccess: true,
	}
}

// jsonNode renders numeric node numbers as !%08x and passes strings through.
func jsonNode(top model.Fields, key string) string {
	v, ok := top.Get(key)
	if !ok {
		return model.UnknownNode
	}
	switch n := v.(type) {
	case json.Number:
		if u, err := strconv.ParseUint(n.String(), 10, 32); err == nil {
			return wire.NodeID(uint32(u))
		}
		return n.String()
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

// orderedObject decodes a JSON object keeping key order, recursively for
// nested objects. Numbers are kept as json.Number.
func orderedObject(b []byte) (model.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	obj, ok := v.(model.Fields)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := model.Fields{}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := kt.(string)
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj = obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

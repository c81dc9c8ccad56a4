// Package dispatch maps an inner packet's portnum to the routine that
// extracts its fields. The table is fixed at construction; lookups never
// fail and never panic out of Dispatch.
package dispatch

import (
	"fmt"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/wire"
)

// Extractor turns a payload into a flat field mapping.
type Extractor func(payload []byte) (model.Fields, error)

type registration struct {
	packetType string
	extract    Extractor
}

// Result is the normalised outcome of dispatching one inner packet.
type Result struct {
	PacketType string
	Fields     model.Fields
}

type Dispatcher struct {
	table map[uint32]registration
}

// New returns a dispatcher with every known Meshtastic application port
// registered.
func New() *Dispatcher {
	return &Dispatcher{table: map[uint32]registration{
		wire.PortTextMessage:           {"TEXT_MESSAGE_APP", extractText},
		wire.PortRemoteHardware:        {"REMOTE_HARDWARE_APP", extractRaw},
		wire.PortPosition:              {"POSITION", extractPosition},
		wire.PortNodeInfo:              {"NODEINFO_APP", extractNodeInfo},
		wire.PortRouting:               {"ROUTING_APP", extractRouting},
		wire.PortAdmin:                 {"ADMIN_APP", extractRaw},
		wire.PortTextMessageCompressed: {"TEXT_MESSAGE_COMPRESSED", extractRaw},
		wire.PortWaypoint:              {"WAYPOINT_APP", extractWaypoint},
		wire.PortAudio:                 {"AUDIO_APP", extractRaw},
		wire.PortDetectionSensor:       {"DETECTION_SENSOR_APP", extractText},
		wire.PortReply:                 {"REPLY_APP", extractText},
		wire.PortIPTunnel:              {"IP_TUNNEL_APP", extractRaw},
		wire.PortPaxcounter:            {"PAXCOUNTER_APP", extractPaxcount},
		wire.PortSerial:                {"SERIAL_APP", extractRaw},
		wire.PortStoreForward:          {"STORE_FORWARD_APP", extractRaw},
		wire.PortRangeTest:             {"RANGE_TEST_APP", extractRangeTest},
		wire.PortTelemetry:             {"TELEMETRY_APP", extractTelemetry},
		wire.PortZPS:                   {"ZPS_APP", extractRaw},
		wire.PortSimulator:             {"SIMULATOR_APP", extractRaw},
		wire.PortTraceroute:            {"TRACEROUTE_APP", extractTraceroute},
		wire.PortNeighborInfo:          {"NEIGHBORINFO_APP", extractNeighborInfo},
		wire.PortATAKPlugin:            {"ATAK_PLUGIN", extractRaw},
		wire.PortMapReport:             {"MAP_REPORT_APP", extractMapReport},
	}}
}

// PacketType returns the registered packet type for a portnum, or UNKNOWN.
func (d *Dispatcher) PacketType(portnum uint32) string {
	if reg, ok := d.table[portnum]; ok {
		return reg.packetType
	}
	return model.PacketTypeUnknown
}

func (d *Dispatcher) Dispatch(p model.InnerPacket) Result {
	reg, ok := d.table[p.Portnum]
	if !ok {
		return Result{
			PacketType: model.PacketTypeUnknown,
			Fields:     model.NewFields(model.Field{Key: "portnum", Value: p.Portnum}),
		}
	}
	fields, err := run(reg.extract, p.Payload)
	if err != nil {
		fields = model.NewFields(model.Field{Key: "error", Value: err.Error()})
	}
	return Result{PacketType: reg.packetType, Fields: fields}
}

// run isolates one extractor: a panic is reported like a returned error.
func run(extract Extractor, payload []byte) (fields model.Fields, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields, err = nil, fmt.Errorf("extractor panic: %v", r)
		}
	}()
	fields, err = extract(payload)
	if err == nil && fields == nil {
		fields = model.Fields{}
	}
	return fields, err
}

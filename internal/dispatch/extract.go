package dispatch

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/wire"
)

const (
	maxInlineText = 100
	maxHexChars   = 100
)

func extractText(payload []byte) (model.Fields, error) {
	return model.NewFields(model.Field{Key: "text", Value: strings.ToValidUTF8(string(payload), "\uFFFD")}), nil
}

// extractRaw describes a payload whose schema the monitor does not decode.
func extractRaw(payload []byte) (model.Fields, error) {
	f := model.NewFields(model.Field{Key: "payload_size", Value: len(payload)})
	switch {
	case len(payload) == 0:
	case len(payload) < maxInlineText && printable(payload):
		f = f.Set("payload_text", string(payload))
	default:
		h := hex.EncodeToString(payload)
		if len(h) > maxHexChars {
			h = h[:maxHexChars]
		}
		f = f.Set("payload_hex", h)
	}
	return f, nil
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Zero values are treated as absent, as on the wire.
func extractPosition(payload []byte) (model.Fields, error) {
	p, err := wire.ParsePosition(payload)
	if err != nil {
		return nil, err
	}
	f := model.Fields{}
	if p.LatitudeI != 0 {
		f = f.Set("latitude", wire.Degrees(p.LatitudeI))
	}
	if p.LongitudeI != 0 {
		f = f.Set("longitude", wire.Degrees(p.LongitudeI))
	}
	if p.Altitude != 0 {
		f = f.Set("altitude", p.Altitude)
	}
	if p.Time != 0 {
		f = f.Set("time", unixTime(p.Time))
	}
	if p.GroundSpeed != 0 {
		f = f.Set("ground_speed", p.GroundSpeed)
	}
	if p.GroundTrack != 0 {
		f = f.Set("ground_track", p.GroundTrack)
	}
	if p.SatsInView != 0 {
		f = f.Set("sats_in_view", p.SatsInView)
	}
	if p.PrecisionBits != 0 {
		f = f.Set("precision_bits", p.PrecisionBits)
	}
	return f, nil
}

func extractNodeInfo(payload []byte) (model.Fields, error) {
	u, err := wire.ParseUser(payload)
	if err != nil {
		return nil, err
	}
	f := model.Fields{}
	if u.ID != "" {
		f = f.Set("node_id", u.ID)
	}
	if u.LongName != "" {
		f = f.Set("long_name", u.LongName)
	}
	if u.ShortName != "" {
		f = f.Set("short_name", u.ShortName)
	}
	if len(u.Macaddr) > 0 {
		f = f.Set("macaddr", hex.EncodeToString(u.Macaddr))
	}
	if u.HwModel != 0 {
		f = f.Set("hardware_model", wire.HardwareModel(u.HwModel))
	}
	if u.Role != 0 {
		f = f.Set("role", wire.Role(u.Role))
	}
	if u.IsLicensed {
		f = f.Set("is_licensed", true)
	}
	return f, nil
}

func extractRouting(payload []byte) (model.Fields, error) {
	r, err := wire.ParseRouting(payload)
	if err != nil {
		return nil, err
	}
	f := model.Fields{}
	if r.RouteRequest != nil {
		f = f.Set("route_request", nodeIDs(r.RouteRequest.Route))
	}
	if r.RouteReply != nil {
		f = f.Set("route_reply", nodeIDs(r.RouteReply.Route))
	}
	if r.HasErrorReason {
		f = f.Set("error_reason", wire.RoutingError(r.ErrorReason))
	}
	return f, nil
}

func extractWaypoint(payload []byte) (model.Fields, error) {
	w, err := wire.ParseWaypoint(payload)
	if err != nil {
		return nil, err
	}
	f := model.NewFields(model.Field{Key: "id", Value: w.ID})
	if w.Name != "" {
		f = f.Set("name", w.Name)
	}
	if w.Description != "" {
		f = f.Set("description", w.Description)
	}
	if w.LatitudeI != 0 {
		f = f.Set("latitude", wire.Degrees(w.LatitudeI))
	}
	if w.LongitudeI != 0 {
		f = f.Set("longitude", wire.Degrees(w.LongitudeI))
	}
	if w.Expire != 0 {
		f = f.Set("expire", unixTime(w.Expire))
	}
	if w.LockedTo != 0 {
		f = f.Set("locked_to", wire.NodeID(w.LockedTo))
	}
	return f, nil
}

func extractPaxcount(payload []byte) (model.Fields, error) {
	p, err := wire.ParsePaxcount(payload)
	if err != nil {
		return nil, err
	}
	return model.NewFields(
		model.Field{Key: "wifi", Value: p.Wifi},
		model.Field{Key: "ble", Value: p.BLE},
		model.Field{Key: "uptime", Value: p.Uptime},
	), nil
}

// Range test payloads are "seq <n>" strings.
func extractRangeTest(payload []byte) (model.Fields, error) {
	f, _ := extractText(payload)
	text, _ := f.Get("text")
	if rest, ok := strings.CutPrefix(text.(string), "seq "); ok {
		if n, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 32); err == nil {
			f = f.Set("seq", uint32(n))
		}
	}
	return f, nil
}

func extractTelemetry(payload []byte) (model.Fields, error) {
	t, err := wire.ParseTelemetry(payload)
	if err != nil {
		return nil, err
	}
	f := model.Fields{}
	set := func(key string, v float32) {
		if v != 0 {
			f = f.Set(key, v)
		}
	}
	if d := t.Device; d != nil {
		if d.BatteryLevel != 0 {
			f = f.Set("battery_level", d.BatteryLevel)
		}
		set("voltage", d.Voltage)
		set("channel_utilization", d.ChannelUtilization)
		set("air_util_tx", d.AirUtilTx)
		if d.UptimeSeconds != 0 {
			f = f.Set("uptime_seconds", d.UptimeSeconds)
		}
	}
	if e := t.Environment; e != nil {
		set("temperature", e.Temperature)
		set("humidity", e.RelativeHumidity)
		set("pressure", e.BarometricPressure)
		set("gas_resistance", e.GasResistance)
		if e.IAQ != 0 {
			f = f.Set("iaq", e.IAQ)
		}
		set("lux", e.Lux)
		set("ir_lux", e.IRLux)
	}
	if p := t.Power; p != nil {
		set("ch1_voltage", p.Ch1Voltage)
		set("ch1_current", p.Ch1Current)
		set("ch2_voltage", p.Ch2Voltage)
		set("ch2_current", p.Ch2Current)
		set("ch3_voltage", p.Ch3Voltage)
		set("ch3_current", p.Ch3Current)
	}
	return f, nil
}

func extractTraceroute(payload []byte) (model.Fields, error) {
	rd, err := wire.ParseRouteDiscovery(payload)
	if err != nil {
		return nil, err
	}
	f := model.NewFields(
		model.Field{Key: "route", Value: nodeIDs(rd.Route)},
		model.Field{Key: "snr_towards", Value: snrDB(rd.SNRTowards)},
	)
	if len(rd.RouteBack) > 0 {
		f = f.Set("route_back", nodeIDs(rd.RouteBack))
	}
	if len(rd.SNRBack) > 0 {
		f = f.Set("snr_back", snrDB(rd.SNRBack))
	}
	return f, nil
}

// Neighbor is one entry of the neighbors field of NEIGHBORINFO_APP.
type Neighbor struct {
	NodeID string  `json:"node_id"`
	SNR    float32 `json:"snr"`
}

func extractNeighborInfo(payload []byte) (model.Fields, error) {
	ni, err := wire.ParseNeighborInfo(payload)
	if err != nil {
		return nil, err
	}
	neighbors := make([]Neighbor, 0, len(ni.Neighbors))
	for _, n := range ni.Neighbors {
		neighbors = append(neighbors, Neighbor{NodeID: wire.NodeID(n.NodeID), SNR: n.SNR})
	}
	f := model.NewFields(model.Field{Key: "node_id", Value: wire.NodeID(ni.NodeID)})
	if ni.LastSentByID != 0 {
		f = f.Set("last_sent_by_id", wire.NodeID(ni.LastSentByID))
	}
	if ni.Interval != 0 {
		f = f.Set("node_broadcast_interval_secs", ni.Interval)
	}
	return f.Set("neighbors", neighbors), nil
}

func extractMapReport(payload []byte) (model.Fields, error) {
	m, err := wire.ParseMapReport(payload)
	if err != nil {
		return nil, err
	}
	f := model.Fields{}
	if m.LongName != "" {
		f = f.Set("long_name", m.LongName)
	}
	if m.ShortName != "" {
		f = f.Set("short_name", m.ShortName)
	}
	f = f.Set("role", wire.Role(m.Role))
	f = f.Set("hardware_model", wire.HardwareModel(m.HwModel))
	if m.FirmwareVersion != "" {
		f = f.Set("firmware_version", m.FirmwareVersion)
	}
	f = f.Set("region", wire.Region(m.Region))
	f = f.Set("modem_preset", wire.ModemPreset(m.ModemPreset))
	if m.LatitudeI != 0 {
		f = f.Set("latitude", wire.Degrees(m.LatitudeI))
	}
	if m.LongitudeI != 0 {
		f = f.Set("longitude", wire.Degrees(m.LongitudeI))
	}
	if m.Altitude != 0 {
		f = f.Set("altitude", m.Altitude)
	}
	return f.Set("num_online_local_nodes", m.NumOnlineLocalNodes), nil
}

func nodeIDs(ns []uint32) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, wire.NodeID(n))
	}
	return out
}

// snrDB converts the quarter-dB wire values to dB.
func snrDB(vs []int32) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		out = append(out, float64(v)/4)
	}
	return out
}

func unixTime(sec uint32) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

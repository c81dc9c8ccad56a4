package wire

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden messages below are literal bytes laid out from the Meshtastic
// .proto definitions (mesh.proto, telemetry.proto, mqtt.proto,
// paxcount.proto). They never go through the Append* encoders, so a wrong
// field number or wire type in a parser shows up here.

func golden(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestGolden_ServiceEnvelope(t *testing.T) {
	// packet{from:0x11223344 to:0xffffffff channel:8 decoded{portnum:1 payload:"hi"}
	// id:777 rx_time:1700000000 rx_snr:6.25 hop_limit:3 want_ack:true
	// rx_rssi:-97 via_mqtt:true hop_start:3} channel_id:"LongFast" gateway_id:"!aabbccdd"
	raw := golden(t, "0a360d4433221115ffffffff1808220608011202686935090300003d00f1536545"+
		"0000c84048035001609fffffffffffffffff017001780312084c6f6e67466173741a09216161626263636464")

	env, err := ParseEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "LongFast", env.ChannelID)
	assert.Equal(t, "!aabbccdd", env.GatewayID)
	assert.Equal(t, uint32(0x11223344), env.From)
	assert.Equal(t, Broadcast, env.To)
	assert.Equal(t, uint32(8), env.ChannelHash)
	assert.Equal(t, uint32(777), env.PacketID)
	assert.Equal(t, uint32(1700000000), env.RxTime)
	assert.Equal(t, float32(6.25), env.RxSNR)
	assert.Equal(t, uint32(3), env.HopLimit)
	assert.Equal(t, uint32(3), env.HopStart)
	assert.Equal(t, int32(-97), env.RxRSSI)
	assert.True(t, env.ViaMQTT)
	assert.False(t, env.Encrypted)

	d, err := ParseDecryptedData(env.Inner)
	require.NoError(t, err)
	assert.Equal(t, PortTextMessage, d.Portnum)
	assert.Equal(t, []byte("hi"), d.Payload)
}

func TestGolden_EncryptedEnvelope(t *testing.T) {
	raw := golden(t, "0a170dd4c3b2a115ffffffff18082a04deadbeef350403020112084c6f6e67466173741a09216131623263336434")

	env, err := ParseEnvelope(raw)
	require.NoError(t, err)
	assert.True(t, env.Encrypted)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, env.Inner)
	assert.Equal(t, uint32(0xa1b2c3d4), env.From)
	assert.Equal(t, uint32(0x01020304), env.PacketID)
	assert.Equal(t, uint32(8), env.ChannelHash)
	assert.Equal(t, "!a1b2c3d4", env.GatewayID)
}

func TestGolden_Data(t *testing.T) {
	raw := golden(t, "0801120268691801250d0c0b0a2d0403020135630000003d620000004500f601004801")

	d, err := ParseDecryptedData(raw)
	require.NoError(t, err)
	assert.Equal(t, Data{
		Portnum:      PortTextMessage,
		Payload:      []byte("hi"),
		WantResponse: true,
		Dest:         0x0a0b0c0d,
		Source:       0x01020304,
		RequestID:    99,
		ReplyID:      98,
		Emoji:        0x1f600,
		Bitfield:     1,
		hasPortnum:   true,
	}, d)
}

func TestGolden_Position(t *testing.T) {
	raw := golden(t, "0d08fe831615304808b7180f2500f153653d01f153654817780580018e02980109b80120")

	p, err := ParsePosition(raw)
	require.NoError(t, err)
	assert.Equal(t, Position{
		LatitudeI:     377749000,
		LongitudeI:    -1224194000,
		Altitude:      15,
		Time:          1700000000,
		Timestamp:     1700000001,
		AltitudeHAE:   -12,
		GroundSpeed:   5,
		GroundTrack:   270,
		SatsInView:    9,
		PrecisionBits: 32,
	}, p)
}

func TestGolden_User(t *testing.T) {
	raw := golden(t, "0a09216131623263336434120c426173652053746174696f6e1a04424153452206a1b2c3d4e5f6282b30013802")

	u, err := ParseUser(raw)
	require.NoError(t, err)
	assert.Equal(t, User{
		ID:         "!a1b2c3d4",
		LongName:   "Base Station",
		ShortName:  "BASE",
		Macaddr:    []byte{0xa1, 0xb2, 0xc3, 0xd4, 0xe5, 0xf6},
		HwModel:    43,
		IsLicensed: true,
		Role:       2,
	}, u)
}

func TestGolden_Telemetry(t *testing.T) {
	t.Run("device", func(t *testing.T) {
		tel, err := ParseTelemetry(golden(t, "0d00f153651214085715000084401d00004841250000e03f28901c"))
		require.NoError(t, err)
		assert.Equal(t, uint32(1700000000), tel.Time)
		require.NotNil(t, tel.Device)
		assert.Equal(t, DeviceMetrics{
			BatteryLevel:       87,
			Voltage:            4.125,
			ChannelUtilization: 12.5,
			AirUtilTx:          1.75,
			UptimeSeconds:      3600,
		}, *tel.Device)
		assert.Nil(t, tel.Environment)
		assert.Nil(t, tel.Power)
	})
	t.Run("environment", func(t *testing.T) {
		tel, err := ParseTelemetry(golden(t, "1a200d0000ac4115000034421d00507d44250000404138374d000096435d00000041"))
		require.NoError(t, err)
		require.NotNil(t, tel.Environment)
		assert.Equal(t, EnvironmentMetrics{
			Temperature:        21.5,
			RelativeHumidity:   45,
			BarometricPressure: 1013.25,
			GasResistance:      12,
			IAQ:                55,
			Lux:                300,
			IRLux:              8,
		}, *tel.Environment)
	})
	t.Run("power", func(t *testing.T) {
		tel, err := ParseTelemetry(golden(t, "2a1e0d0000a040150000003f1d00004041250000a03f2d00005040350000003e"))
		require.NoError(t, err)
		require.NotNil(t, tel.Power)
		assert.Equal(t, PowerMetrics{
			Ch1Voltage: 5, Ch1Current: 0.5,
			Ch2Voltage: 12, Ch2Current: 1.25,
			Ch3Voltage: 3.25, Ch3Current: 0.125,
		}, *tel.Power)
	})
}

func TestGolden_Routing(t *testing.T) {
	want := RouteDiscovery{
		Route:      []uint32{0x11111111, 0x22222222},
		SNRTowards: []int32{24, -8},
		RouteBack:  []uint32{0x33333333},
		SNRBack:    []int32{-4},
	}
	rdHex := "0a081111111122222222120b18f8ffffffffffffffff011a0433333333220afcffffffffffffffff01"

	rd, err := ParseRouteDiscovery(golden(t, rdHex))
	require.NoError(t, err)
	assert.Equal(t, want, rd)

	r, err := ParseRouting(golden(t, "1229"+rdHex))
	require.NoError(t, err)
	assert.Nil(t, r.RouteRequest)
	require.NotNil(t, r.RouteReply)
	assert.Equal(t, want, *r.RouteReply)

	r, err = ParseRouting(golden(t, "1805"))
	require.NoError(t, err)
	assert.True(t, r.HasErrorReason)
	assert.Equal(t, uint32(5), r.ErrorReason)
}

func TestGolden_NeighborInfo(t *testing.T) {
	raw := golden(t, "08d487cb8d0a108486880818840722120dddccbbaa150000d0401d00f15365208407"+
		"220a0d0403020115000050c0")

	ni, err := ParseNeighborInfo(raw)
	require.NoError(t, err)
	assert.Equal(t, NeighborInfo{
		NodeID:       0xa1b2c3d4,
		LastSentByID: 0x01020304,
		Interval:     900,
		Neighbors: []Neighbor{
			{NodeID: 0xaabbccdd, SNR: 6.5, LastRxTime: 1700000000, Interval: 900},
			{NodeID: 0x01020304, SNR: -3.25},
		},
	}, ni)
}

func TestGolden_Waypoint(t *testing.T) {
	raw := golden(t, "0892211508fe83161d304808b72080a4a7da0628d487cb8d0a320443616d703a0a6e6f727468206761746545d5f30100")

	w, err := ParseWaypoint(raw)
	require.NoError(t, err)
	assert.Equal(t, Waypoint{
		ID:          4242,
		LatitudeI:   377749000,
		LongitudeI:  -1224194000,
		Expire:      1800000000,
		LockedTo:    0xa1b2c3d4,
		Name:        "Camp",
		Description: "north gate",
		Icon:        0x1f3d5,
	}, w)
}

func TestGolden_MapReport(t *testing.T) {
	raw := golden(t, "0a0b47617465776179204f6e6512034757311802202b2a09322e332e322e616263300138004001"+
		"4d08fe831655304808b758fbffffffffffffffff01600d6807")

	m, err := ParseMapReport(raw)
	require.NoError(t, err)
	assert.Equal(t, MapReport{
		LongName:            "Gateway One",
		ShortName:           "GW1",
		Role:                2,
		HwModel:             43,
		FirmwareVersion:     "2.3.2.abc",
		Region:              1,
		HasDefaultChannel:   true,
		LatitudeI:           377749000,
		LongitudeI:          -1224194000,
		Altitude:            -5,
		PositionPrecision:   13,
		NumOnlineLocalNodes: 7,
	}, m)
}

func TestGolden_Paxcount(t *testing.T) {
	p, err := ParsePaxcount(golden(t, "080c102218e02b"))
	require.NoError(t, err)
	assert.Equal(t, Paxcount{Wifi: 12, BLE: 34, Uptime: 5600}, p)
}

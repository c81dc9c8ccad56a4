package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	mrLongName            protowire.Number = 1
	mrShortName           protowire.Number = 2
	mrRole                protowire.Number = 3
	mrHwModel             protowire.Number = 4
	mrFirmwareVersion     protowire.Number = 5
	mrRegion              protowire.Number = 6
	mrModemPreset         protowire.Number = 7
	mrHasDefaultChannel   protowire.Number = 8
	mrLatitudeI           protowire.Number = 9
	mrLongitudeI          protowire.Number = 10
	mrAltitude            protowire.Number = 11
	mrPositionPrecision   protowire.Number = 12
	mrNumOnlineLocalNodes protowire.Number = 13
)

// MapReport is the MAP_REPORT_APP payload, published by gateways with
// map reporting enabled.
type MapReport struct {
	LongName            string
	ShortName           string
	Role                uint32
	HwModel             uint32
	FirmwareVersion     string
	Region              uint32
	ModemPreset         uint32
	HasDefaultChannel   bool
	LatitudeI           int32
	LongitudeI          int32
	Altitude            int32
	PositionPrecision   uint32
	NumOnlineLocalNodes uint32
}

func ParseMapReport(b []byte) (MapReport, error) {
	var m MapReport
	err := walk(b, func(f field) error {
		switch f.num {
		case mrLongName, mrShortName, mrFirmwareVersion:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			switch f.num {
			case mrLongName:
				m.LongName = f.str()
			case mrShortName:
				m.ShortName = f.str()
			case mrFirmwareVersion:
				m.FirmwareVersion = f.str()
			}
		case mrLatitudeI, mrLongitudeI:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			if f.num == mrLatitudeI {
				m.LatitudeI = f.sfixed32()
			} else {
				m.LongitudeI = f.sfixed32()
			}
		case mrRole, mrHwModel, mrRegion, mrModemPreset, mrHasDefaultChannel,
			mrAltitude, mrPositionPrecision, mrNumOnlineLocalNodes:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			switch f.num {
			case mrRole:
				m.Role = f.u32()
			case mrHwModel:
				m.HwModel = f.u32()
			case mrRegion:
				m.Region = f.u32()
			case mrModemPreset:
				m.ModemPreset = f.u32()
			case mrHasDefaultChannel:
				m.HasDefaultChannel = f.flag()
			case mrAltitude:
				m.Altitude = f.i32()
			case mrPositionPrecision:
				m.PositionPrecision = f.u32()
			case mrNumOnlineLocalNodes:
				m.NumOnlineLocalNodes = f.u32()
			}
		}
		return nil
	})
	return m, err
}

func AppendMapReport(b []byte, m MapReport) []byte {
	b = appendString(b, mrLongName, m.LongName)
	b = appendString(b, mrShortName, m.ShortName)
	b = appendVarint(b, mrRole, uint64(m.Role))
	b = appendVarint(b, mrHwModel, uint64(m.HwModel))
	b = appendString(b, mrFirmwareVersion, m.FirmwareVersion)
	b = appendVarint(b, mrRegion, uint64(m.Region))
	b = appendVarint(b, mrModemPreset, uint64(m.ModemPreset))
	b = appendBool(b, mrHasDefaultChannel, m.HasDefaultChannel)
	b = appendSfixed32(b, mrLatitudeI, m.LatitudeI)
	b = appendSfixed32(b, mrLongitudeI, m.LongitudeI)
	b = appendInt32(b, mrAltitude, m.Altitude)
	b = appendVarint(b, mrPositionPrecision, uint64(m.PositionPrecision))
	b = appendVarint(b, mrNumOnlineLocalNodes, uint64(m.NumOnlineLocalNodes))
	return b
}

var regions = []string{
	"UNSET", "US", "EU_433", "EU_868", "CN", "JP", "ANZ", "KR", "TW", "RU",
	"IN", "NZ_865", "TH", "LORA_24", "UA_433", "UA_868", "MY_433", "MY_919",
	"SG_923",
}

var modemPresets = []string{
	"LONG_FAST", "LONG_SLOW", "VERY_LONG_SLOW", "MEDIUM_SLOW", "MEDIUM_FAST",
	"SHORT_SLOW", "SHORT_FAST", "LONG_MODERATE", "SHORT_TURBO",
}

func Region(n uint32) string { return enumName(regions, n) }

func ModemPreset(n uint32) string { return enumName(modemPresets, n) }

func enumName(names []string, n uint32) string {
	if int(n) < len(names) {
		return names[n]
	}
	return fmt.Sprintf("UNKNOWN_%d", n)
}

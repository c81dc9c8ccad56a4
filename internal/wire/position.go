package wire

import "google.golang.org/protobuf/encoding/protowire"

const (
	posLatitudeI     protowire.Number = 1
	posLongitudeI    protowire.Number = 2
	posAltitude      protowire.Number = 3
	posTime          protowire.Number = 4
	posTimestamp     protowire.Number = 7
	posAltitudeHAE   protowire.Number = 9
	posGroundSpeed   protowire.Number = 15
	posGroundTrack   protowire.Number = 16
	posSatsInView    protowire.Number = 19
	posPrecisionBits protowire.Number = 23
)

// Position coordinates are fixed point, degrees * 1e7.
type Position struct {
	LatitudeI     int32
	LongitudeI    int32
	Altitude      int32
	Time          uint32
	Timestamp     uint32
	AltitudeHAE   int32
	GroundSpeed   uint32
	GroundTrack   uint32
	SatsInView    uint32
	PrecisionBits uint32
}

func ParsePosition(b []byte) (Position, error) {
	var p Position
	err := walk(b, func(f field) error {
		switch f.num {
		case posLatitudeI, posLongitudeI, posTime, posTimestamp:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			switch f.num {
			case posLatitudeI:
				p.LatitudeI = f.sfixed32()
			case posLongitudeI:
				p.LongitudeI = f.sfixed32()
			case posTime:
				p.Time = f.u32()
			case posTimestamp:
				p.Timestamp = f.u32()
			}
		case posAltitude, posAltitudeHAE, posGroundSpeed, posGroundTrack, posSatsInView, posPrecisionBits:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			switch f.num {
			case posAltitude:
				p.Altitude = f.i32()
			case posAltitudeHAE:
				p.AltitudeHAE = f.sint32()
			case posGroundSpeed:
				p.GroundSpeed = f.u32()
			case posGroundTrack:
				p.GroundTrack = f.u32()
			case posSatsInView:
				p.SatsInView = f.u32()
			case posPrecisionBits:
				p.PrecisionBits = f.u32()
			}
		}
		return nil
	})
	return p, err
}

func AppendPosition(b []byte, p Position) []byte {
	b = appendSfixed32(b, posLatitudeI, p.LatitudeI)
	b = appendSfixed32(b, posLongitudeI, p.LongitudeI)
	b = appendInt32(b, posAltitude, p.Altitude)
	b = appendFixed32(b, posTime, p.Time)
	b = appendFixed32(b, posTimestamp, p.Timestamp)
	b = appendSint32(b, posAltitudeHAE, p.AltitudeHAE)
	b = appendVarint(b, posGroundSpeed, uint64(p.GroundSpeed))
	b = appendVarint(b, posGroundTrack, uint64(p.GroundTrack))
	b = appendVarint(b, posSatsInView, uint64(p.SatsInView))
	b = appendVarint(b, posPrecisionBits, uint64(p.PrecisionBits))
	return b
}

// Degrees converts a fixed point coordinate to decimal degrees.
func Degrees(fixed int32) float64 {
	return float64(fixed) / 1e7
}

package wire

import "google.golang.org/protobuf/encoding/protowire"

const (
	wpID          protowire.Number = 1
	wpLatitudeI   protowire.Number = 2
	wpLongitudeI  protowire.Number = 3
	wpExpire      protowire.Number = 4
	wpLockedTo    protowire.Number = 5
	wpName        protowire.Number = 6
	wpDescription protowire.Number = 7
	wpIcon        protowire.Number = 8
)

// Waypoint is the WAYPOINT_APP payload.
type Waypoint struct {
	ID          uint32
	LatitudeI   int32
	LongitudeI  int32
	Expire      uint32
	LockedTo    uint32
	Name        string
	Description string
	Icon        uint32
}

func ParseWaypoint(b []byte) (Waypoint, error) {
	var w Waypoint
	err := walk(b, func(f field) error {
		switch f.num {
		case wpID, wpExpire, wpLockedTo:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			switch f.num {
			case wpID:
				w.ID = f.u32()
			case wpExpire:
				w.Expire = f.u32()
			case wpLockedTo:
				w.LockedTo = f.u32()
			}
		case wpLatitudeI, wpLongitudeI, wpIcon:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			switch f.num {
			case wpLatitudeI:
				w.LatitudeI = f.sfixed32()
			case wpLongitudeI:
				w.LongitudeI = f.sfixed32()
			case wpIcon:
				w.Icon = f.u32()
			}
		case wpName, wpDescription:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			if f.num == wpName {
				w.Name = f.str()
			} else {
				w.Description = f.str()
			}
		}
		return nil
	})
	return w, err
}

func AppendWaypoint(b []byte, w Waypoint) []byte {
	b = appendVarint(b, wpID, uint64(w.ID))
	b = appendSfixed32(b, wpLatitudeI, w.LatitudeI)
	b = appendSfixed32(b, wpLongitudeI, w.LongitudeI)
	b = appendVarint(b, wpExpire, uint64(w.Expire))
	b = appendVarint(b, wpLockedTo, uint64(w.LockedTo))
	b = appendString(b, wpName, w.Name)
	b = appendString(b, wpDescription, w.Description)
	b = appendFixed32(b, wpIcon, w.Icon)
	return b
}

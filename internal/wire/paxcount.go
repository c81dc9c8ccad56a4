package wire

import "google.golang.org/protobuf/encoding/protowire"

const (
	paxWifi   protowire.Number = 1
	paxBLE    protowire.Number = 2
	paxUptime protowire.Number = 3
)

// Paxcount is the PAXCOUNTER_APP payload.
type Paxcount struct {
	Wifi   uint32
	BLE    uint32
	Uptime uint32
}

func ParsePaxcount(b []byte) (Paxcount, error) {
	var p Paxcount
	err := walk(b, func(f field) error {
		if f.num < paxWifi || f.num > paxUptime {
			return nil
		}
		if err := f.want(protowire.VarintType); err != nil {
			return err
		}
		switch f.num {
		case paxWifi:
			p.Wifi = f.u32()
		case paxBLE:
			p.BLE = f.u32()
		case paxUptime:
			p.Uptime = f.u32()
		}
		return nil
	})
	return p, err
}

func AppendPaxcount(b []byte, p Paxcount) []byte {
	b = appendVarint(b, paxWifi, uint64(p.Wifi))
	b = appendVarint(b, paxBLE, uint64(p.BLE))
	b = appendVarint(b, paxUptime, uint64(p.Uptime))
	return b
}

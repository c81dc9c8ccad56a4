package wire

import "google.golang.org/protobuf/encoding/protowire"

const (
	niNodeID       protowire.Number = 1
	niLastSentByID protowire.Number = 2
	niInterval     protowire.Number = 3
	niNeighbors    protowire.Number = 4
)

const (
	nbNodeID     protowire.Number = 1
	nbSNR        protowire.Number = 2
	nbLastRxTime protowire.Number = 3
	nbInterval   protowire.Number = 4
)

type Neighbor struct {
	NodeID     uint32
	SNR        float32
	LastRxTime uint32
	Interval   uint32
}

// NeighborInfo is the NEIGHBORINFO_APP payload.
type NeighborInfo struct {
	NodeID       uint32
	LastSentByID uint32
	Interval     uint32
	Neighbors    []Neighbor
}

func ParseNeighborInfo(b []byte) (NeighborInfo, error) {
	var ni NeighborInfo
	err := walk(b, func(f field) error {
		switch f.num {
		case niNodeID, niLastSentByID, niInterval:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			switch f.num {
			case niNodeID:
				ni.NodeID = f.u32()
			case niLastSentByID:
				ni.LastSentByID = f.u32()
			case niInterval:
				ni.Interval = f.u32()
			}
		case niNeighbors:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			n, err := parseNeighbor(f.b)
			if err != nil {
				return err
			}
			ni.Neighbors = append(ni.Neighbors, n)
		}
		return nil
	})
	return ni, err
}

func parseNeighbor(b []byte) (Neighbor, error) {
	var n Neighbor
	err := walk(b, func(f field) error {
		switch f.num {
		case nbNodeID, nbInterval:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			if f.num == nbNodeID {
				n.NodeID = f.u32()
			} else {
				n.Interval = f.u32()
			}
		case nbSNR, nbLastRxTime:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			if f.num == nbSNR {
				n.SNR = f.f32()
			} else {
				n.LastRxTime = f.u32()
			}
		}
		return nil
	})
	return n, err
}

func AppendNeighborInfo(b []byte, ni NeighborInfo) []byte {
	b = appendVarint(b, niNodeID, uint64(ni.NodeID))
	b = appendVarint(b, niLastSentByID, uint64(ni.LastSentByID))
	b = appendVarint(b, niInterval, uint64(ni.Interval))
	for _, n := range ni.Neighbors {
		var m []byte
		m = appendVarint(m, nbNodeID, uint64(n.NodeID))
		m = appendFloat(m, nbSNR, n.SNR)
		m = appendFixed32(m, nbLastRxTime, n.LastRxTime)
		m = appendVarint(m, nbInterval, uint64(n.Interval))
		b = appendMessage(b, niNeighbors, m)
	}
	return b
}

package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	routingRequest     protowire.Number = 1
	routingReply       protowire.Number = 2
	routingErrorReason protowire.Number = 3
)

const (
	rdRoute      protowire.Number = 1
	rdSNRTowards protowire.Number = 2
	rdRouteBack  protowire.Number = 3
	rdSNRBack    protowire.Number = 4
)

// RouteDiscovery is the TRACEROUTE_APP payload and the body of routing
// requests and replies. SNR values are in quarter dB.
type RouteDiscovery struct {
	Route      []uint32
	SNRTowards []int32
	RouteBack  []uint32
	SNRBack    []int32
}

// Routing is the ROUTING_APP payload; one of the three members is present.
type Routing struct {
	RouteRequest   *RouteDiscovery
	RouteReply     *RouteDiscovery
	ErrorReason    uint32
	HasErrorReason bool
}

func ParseRouting(b []byte) (Routing, error) {
	var r Routing
	err := walk(b, func(f field) error {
		switch f.num {
		case routingRequest, routingReply:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			rd, err := ParseRouteDiscovery(f.b)
			if err != nil {
				return err
			}
			if f.num == routingRequest {
				r.RouteRequest = &rd
			} else {
				r.RouteReply = &rd
			}
		case routingErrorReason:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			r.ErrorReason, r.HasErrorReason = f.u32(), true
		}
		return nil
	})
	return r, err
}

func ParseRouteDiscovery(b []byte) (RouteDiscovery, error) {
	var rd RouteDiscovery
	err := walk(b, func(f field) error {
		switch f.num {
		case rdRoute, rdRouteBack:
			vs, err := f.packed(protowire.Fixed32Type)
			if err != nil {
				return err
			}
			for _, v := range vs {
				if f.num == rdRoute {
					rd.Route = append(rd.Route, uint32(v))
				} else {
					rd.RouteBack = append(rd.RouteBack, uint32(v))
				}
			}
		case rdSNRTowards, rdSNRBack:
			vs, err := f.packed(protowire.VarintType)
			if err != nil {
				return err
			}
			for _, v := range vs {
				if f.num == rdSNRTowards {
					rd.SNRTowards = append(rd.SNRTowards, int32(int64(v)))
				} else {
					rd.SNRBack = append(rd.SNRBack, int32(int64(v)))
				}
			}
		}
		return nil
	})
	return rd, err
}

func AppendRouteDiscovery(b []byte, rd RouteDiscovery) []byte {
	b = appendPackedFixed32(b, rdRoute, rd.Route)
	b = appendPackedInt32(b, rdSNRTowards, rd.SNRTowards)
	b = appendPackedFixed32(b, rdRouteBack, rd.RouteBack)
	b = appendPackedInt32(b, rdSNRBack, rd.SNRBack)
	return b
}

func AppendRouting(b []byte, r Routing) []byte {
	switch {
	case r.RouteRequest != nil:
		return appendMessage(b, routingRequest, AppendRouteDiscovery(nil, *r.RouteRequest))
	case r.RouteReply != nil:
		return appendMessage(b, routingReply, AppendRouteDiscovery(nil, *r.RouteReply))
	default:
		// oneof member: written even when NONE
		b = protowire.AppendTag(b, routingErrorReason, protowire.VarintType)
		return protowire.AppendVarint(b, uint64(r.ErrorReason))
	}
}

func appendPackedFixed32(b []byte, num protowire.Number, vs []uint32) []byte {
	if len(vs) == 0 {
		return b
	}
	var p []byte
	for _, v := range vs {
		p = protowire.AppendFixed32(p, v)
	}
	return appendMessage(b, num, p)
}

func appendPackedInt32(b []byte, num protowire.Number, vs []int32) []byte {
	if len(vs) == 0 {
		return b
	}
	var p []byte
	for _, v := range vs {
		p = protowire.AppendVarint(p, uint64(int64(v)))
	}
	return appendMessage(b, num, p)
}

var routingErrors = map[uint32]string{
	0:  "NONE",
	1:  "NO_ROUTE",
	2:  "GOT_NAK",
	3:  "TIMEOUT",
	4:  "NO_INTERFACE",
	5:  "MAX_RETRANSMIT",
	6:  "NO_CHANNEL",
	7:  "TOO_LARGE",
	8:  "NO_RESPONSE",
	9:  "DUTY_CYCLE_LIMIT",
	32: "BAD_REQUEST",
	33: "NOT_AUTHORIZED",
	34: "PKI_FAILED",
	35: "PKI_UNKNOWN_PUBKEY",
}

// RoutingError names a Routing.Error value.
func RoutingError(n uint32) string {
	if name, ok := routingErrors[n]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", n)
}

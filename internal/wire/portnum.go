package wire

// Application port numbers (portnums.proto).
const (
	PortUnknown               uint32 = 0
	PortTextMessage           uint32 = 1
	PortRemoteHardware        uint32 = 2
	PortPosition              uint32 = 3
	PortNodeInfo              uint32 = 4
	PortRouting               uint32 = 5
	PortAdmin                 uint32 = 6
	PortTextMessageCompressed uint32 = 7
	PortWaypoint              uint32 = 8
	PortAudio                 uint32 = 9
	PortDetectionSensor       uint32 = 10
	PortReply                 uint32 = 32
	PortIPTunnel              uint32 = 33
	PortPaxcounter            uint32 = 34
	PortSerial                uint32 = 64
	PortStoreForward          uint32 = 65
	PortRangeTest             uint32 = 66
	PortTelemetry             uint32 = 67
	PortZPS                   uint32 = 68
	PortSimulator             uint32 = 69
	PortTraceroute            uint32 = 70
	PortNeighborInfo          uint32 = 71
	PortATAKPlugin            uint32 = 72
	PortMapReport             uint32 = 73
)

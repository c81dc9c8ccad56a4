package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	userID         protowire.Number = 1
	userLongName   protowire.Number = 2
	userShortName  protowire.Number = 3
	userMacaddr    protowire.Number = 4
	userHwModel    protowire.Number = 5
	userIsLicensed protowire.Number = 6
	userRole       protowire.Number = 7
)

// User is the NODEINFO_APP payload.
type User struct {
	ID         string
	LongName   string
	ShortName  string
	Macaddr    []byte
	HwModel    uint32
	IsLicensed bool
	Role       uint32
}

func ParseUser(b []byte) (User, error) {
	var u User
	err := walk(b, func(f field) error {
		switch f.num {
		case userID, userLongName, userShortName, userMacaddr:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			switch f.num {
			case userID:
				u.ID = f.str()
			case userLongName:
				u.LongName = f.str()
			case userShortName:
				u.ShortName = f.str()
			case userMacaddr:
				u.Macaddr = f.b
			}
		case userHwModel, userIsLicensed, userRole:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			switch f.num {
			case userHwModel:
				u.HwModel = f.u32()
			case userIsLicensed:
				u.IsLicensed = f.flag()
			case userRole:
				u.Role = f.u32()
			}
		}
		return nil
	})
	return u, err
}

func AppendUser(b []byte, u User) []byte {
	b = appendString(b, userID, u.ID)
	b = appendString(b, userLongName, u.LongName)
	b = appendString(b, userShortName, u.ShortName)
	b = appendBytes(b, userMacaddr, u.Macaddr)
	b = appendVarint(b, userHwModel, uint64(u.HwModel))
	b = appendBool(b, userIsLicensed, u.IsLicensed)
	b = appendVarint(b, userRole, uint64(u.Role))
	return b
}

var hardwareModels = map[uint32]string{
	0:   "UNSET",
	1:   "TLORA_V2",
	2:   "TLORA_V1",
	3:   "TLORA_V2_1_1P6",
	4:   "TBEAM",
	5:   "HELTEC_V2_0",
	6:   "TBEAM_V0P7",
	7:   "T_ECHO",
	8:   "TLORA_V1_1P3",
	9:   "RAK4631",
	10:  "HELTEC_V2_1",
	11:  "HELTEC_V1",
	12:  "LILYGO_TBEAM_S3_CORE",
	13:  "RAK11200",
	14:  "NANO_G1",
	15:  "TLORA_V2_1_1P8",
	16:  "TLORA_T3_S3",
	17:  "NANO_G1_EXPLORER",
	18:  "NANO_G2_ULTRA",
	19:  "LORA_TYPE",
	20:  "WIPHONE",
	21:  "WIO_WM1110",
	22:  "RAK11310",
	23:  "SENSELORA_RP2040",
	24:  "SENSELORA_S3",
	25:  "CANARYONE",
	26:  "RP2040_LORA",
	27:  "STATION_G1",
	28:  "RAK11310_EPAPER",
	29:  "T_DECK",
	30:  "T_WATCH_S3",
	31:  "PICOMPUTER_S3",
	32:  "HELTEC_V3",
	33:  "HELTEC_WSL_V3",
	34:  "BETAFPV_2400_TX",
	35:  "BETAFPV_900_NANO_TX",
	36:  "RPI_PICO",
	37:  "HELTEC_WIRELESS_TRACKER",
	38:  "HELTEC_WIRELESS_PAPER",
	39:  "T_BEAM_SUPREME",
	40:  "UNPHONE",
	41:  "TD_LORAC",
	42:  "CDEBYTE_EORA_S3",
	43:  "TWC_MESH_V4",
	44:  "NRF52840_PCA10059",
	45:  "NRF52_UNKNOWN",
	46:  "PORTDUINO",
	47:  "ANDROID_SIM",
	48:  "DIY_V1",
	49:  "NRF52840_DK",
	50:  "NRF52840_PPR",
	51:  "GENIEBLOCKS",
	52:  "NRF52_PROMICRO_DIY",
	53:  "RADIOMASTER_900_BANDIT_NANO",
	54:  "HELTEC_CAPSULE_SENSOR_V3",
	55:  "HELTEC_VISION_MASTER_T190",
	56:  "HELTEC_VISION_MASTER_E213",
	57:  "HELTEC_VISION_MASTER_E290",
	58:  "HELTEC_MESH_NODE_T114",
	59:  "SENSECAP_INDICATOR",
	60:  "TRACKER_T1000_E",
	61:  "RAK3172",
	62:  "WIO_E5",
	63:  "RADIOMASTER_900_BANDIT",
	64:  "ME25LS01_4Y10TD",
	65:  "RP2040_FEATHER_RFM95",
	66:  "M5STACK_COREBASIC",
	67:  "M5STACK_CORE2",
	68:  "RPI_PICO2",
	69:  "M5STACK_CORES3",
	70:  "SEEED_XIAO_S3",
	71:  "BETAFPV_2400_RX",
	72:  "HELTEC_WT32",
	73:  "ESP32_S3_PICO",
	74:  "CHATTER_2",
	75:  "HELTEC_WIRELESS_PAPER_V1_0",
	76:  "HELTEC_PRO_V1_0",
	77:  "SEEED_SENSECAP_CARD_TRACKER",
	78:  "HELTEC_WIRELESS_TRACKER_V1_0",
	79:  "EBYTE_E22_MBL_01",
	80:  "HELTEC_WIRELESS_PAPER_V1_1",
	81:  "PRIVATE_HW",
	255: "RESERVED",
}

// HardwareModel names a HardwareModel enum value; unlisted values render as
// UNKNOWN_<n>.
func HardwareModel(n uint32) string {
	if name, ok := hardwareModels[n]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", n)
}

var roles = []string{
	"CLIENT",
	"CLIENT_MUTE",
	"ROUTER",
	"ROUTER_CLIENT",
	"REPEATER",
	"TRACKER",
	"SENSOR",
	"TAK",
	"CLIENT_HIDDEN",
	"LOST_AND_FOUND",
	"TAK_TRACKER",
	"ROUTER_LATE",
}

func Role(n uint32) string { return enumName(roles, n) }

// Package ads implements the Beckhoff AMS/ADS protocol, including the
// Secure ADS transport (AMS/ADS tunneled over TLS 1.2 on port 8016).
package ads

// ADS command IDs carried in the AMS header.
const (
	CmdReadDeviceInfo     uint16 = 0x0001
	CmdRead               uint16 = 0x0002
	CmdWrite               uint16 = 0x0003
	CmdReadState           uint16 = 0x0004
	CmdWriteControl        uint16 = 0x0005
	CmdAddDeviceNotify     uint16 = 0x0006
	CmdDeleteDeviceNotify  uint16 = 0x0007
	CmdDeviceNotification  uint16 = 0x0008
	CmdReadWrite           uint16 = 0x0009
)

// AMS state flags. A request sets AdsCommand; a response additionally sets
// Response.
const (
	StateFlagResponse  uint16 = 0x0001
	StateFlagAdsCmd    uint16 = 0x0004
	StateFlagRequest   uint16 = StateFlagAdsCmd
	StateFlagResponseBit uint16 = StateFlagAdsCmd | StateFlagResponse
)

// Well-known AMS ports.
const (
	PortLogger        uint16 = 100
	PortEventLog      uint16 = 110
	PortIO            uint16 = 300
	PortNC            uint16 = 500
	PortPLC1          uint16 = 801
	PortPLC2          uint16 = 811
	PortTC3PLC1       uint16 = 851
	PortTC3PLC2       uint16 = 852
	PortCamshaft      uint16 = 900
	PortSystemService uint16 = 10000
)

// Default TCP ports for the two transports this library supports.
const (
	DefaultPlainPort  = 48898 // standard ADS, AMS/TCP-preamble framing
	DefaultSecurePort = 8016  // Secure ADS, TLS 1.2 tunnel, no AMS/TCP preamble
)

// AdsState mirrors the ADSSTATE enumeration reported by ReadState.
type AdsState uint16

const (
	AdsStateInvalid     AdsState = 0
	AdsStateIdle        AdsState = 1
	AdsStateReset       AdsState = 2
	AdsStateInit        AdsState = 3
	AdsStateStart       AdsState = 4
	AdsStateRun         AdsState = 5
	AdsStateStop        AdsState = 6
	AdsStateSaveCfg     AdsState = 7
	AdsStateLoadCfg     AdsState = 8
	AdsStatePowerFailure AdsState = 9
	AdsStatePowerGood   AdsState = 10
	AdsStateError       AdsState = 11
	AdsStateShutdown    AdsState = 12
)

func (s AdsState) String() string {
	switch s {
	case AdsStateInvalid:
		return "Invalid"
	case AdsStateIdle:
		return "Idle"
	case AdsStateReset:
		return "Reset"
	case AdsStateInit:
		return "Init"
	case AdsStateStart:
		return "Start"
	case AdsStateRun:
		return "Run"
	case AdsStateStop:
		return "Stop"
	case AdsStateSaveCfg:
		return "SaveConfig"
	case AdsStateLoadCfg:
		return "LoadConfig"
	case AdsStatePowerFailure:
		return "PowerFailure"
	case AdsStatePowerGood:
		return "PowerGood"
	case AdsStateError:
		return "Error"
	case AdsStateShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

package ads

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DeviceInfo is the decoded ReadDeviceInfo response payload:
// u32 result, u8 major, u8 minor, u16 build, 16-byte device name.
type DeviceInfo struct {
	Major      uint8
	Minor      uint8
	Build      uint16
	DeviceName string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s v%d.%d.%d", d.DeviceName, d.Major, d.Minor, d.Build)
}

// decodeDeviceInfo parses a ReadDeviceInfo response payload. The caller has
// already checked the AMS header's ErrorCode; this function also checks the
// payload's own leading result field, since TwinCAT duplicates the error
// there.
func decodeDeviceInfo(payload []byte) (DeviceInfo, error) {
	if len(payload) < 24 {
		return DeviceInfo{}, NewProtocolError("read-device-info", "short response payload", nil)
	}
	result := binary.LittleEndian.Uint32(payload[0:4])
	if result != 0 {
		return DeviceInfo{}, NewApplicationError("read-device-info", result)
	}
	name := strings.TrimRight(string(payload[8:24]), "\x00")
	return DeviceInfo{
		Major:      payload[4],
		Minor:      payload[5],
		Build:      binary.LittleEndian.Uint16(payload[6:8]),
		DeviceName: name,
	}, nil
}

// ReadStateResult is the decoded ReadState response payload:
// u32 result, u16 adsState, u16 deviceState.
type ReadStateResult struct {
	AdsState    AdsState
	DeviceState uint16
}

func decodeReadState(payload []byte) (ReadStateResult, error) {
	if len(payload) < 8 {
		return ReadStateResult{}, NewProtocolError("read-state", "short response payload", nil)
	}
	result := binary.LittleEndian.Uint32(payload[0:4])
	if result != 0 {
		return ReadStateResult{}, NewApplicationError("read-state", result)
	}
	return ReadStateResult{
		AdsState:    AdsState(binary.LittleEndian.Uint16(payload[4:6])),
		DeviceState: binary.LittleEndian.Uint16(payload[6:8]),
	}, nil
}

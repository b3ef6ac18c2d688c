package ads

import "encoding/binary"

// HeaderSize is the fixed size of an AMS header in bytes.
const HeaderSize = 32

// AmsHeader is the 32-byte little-endian header prefixing every AMS/ADS
// message, whether tunneled over TLS or sent as plain ADS.
type AmsHeader struct {
	TargetNetId AmsNetId
	TargetPort  uint16
	SourceNetId AmsNetId
	SourcePort  uint16
	CommandId   uint16
	StateFlags  uint16
	DataLength  uint32
	ErrorCode   uint32
	InvokeId    uint32
}

// IsResponse reports whether the response bit is set.
func (h AmsHeader) IsResponse() bool {
	return h.StateFlags&StateFlagResponse != 0
}

// Encode serializes the header into a new 32-byte buffer.
func (h AmsHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	h.EncodeInto(buf)
	return buf
}

// EncodeInto writes the header into buf, which must be at least HeaderSize
// bytes long.
func (h AmsHeader) EncodeInto(buf []byte) {
	_ = buf[HeaderSize-1]
	copy(buf[0:6], h.TargetNetId[:])
	binary.LittleEndian.PutUint16(buf[6:8], h.TargetPort)
	copy(buf[8:14], h.SourceNetId[:])
	binary.LittleEndian.PutUint16(buf[14:16], h.SourcePort)
	binary.LittleEndian.PutUint16(buf[16:18], h.CommandId)
	binary.LittleEndian.PutUint16(buf[18:20], h.StateFlags)
	binary.LittleEndian.PutUint32(buf[20:24], h.DataLength)
	binary.LittleEndian.PutUint32(buf[24:28], h.ErrorCode)
	binary.LittleEndian.PutUint32(buf[28:32], h.InvokeId)
}

// DecodeHeader parses a 32-byte AMS header from buf.
func DecodeHeader(buf []byte) (AmsHeader, error) {
	if len(buf) < HeaderSize {
		return AmsHeader{}, NewProtocolError("decode-header", "short AMS header", nil)
	}
	var h AmsHeader
	copy(h.TargetNetId[:], buf[0:6])
	h.TargetPort = binary.LittleEndian.Uint16(buf[6:8])
	copy(h.SourceNetId[:], buf[8:14])
	h.SourcePort = binary.LittleEndian.Uint16(buf[14:16])
	h.CommandId = binary.LittleEndian.Uint16(buf[16:18])
	h.StateFlags = binary.LittleEndian.Uint16(buf[18:20])
	h.DataLength = binary.LittleEndian.Uint32(buf[20:24])
	h.ErrorCode = binary.LittleEndian.Uint32(buf[24:28])
	h.InvokeId = binary.LittleEndian.Uint32(buf[28:32])
	return h, nil
}

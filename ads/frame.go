package ads

import "encoding/binary"

// MaxFrameLength caps the total size (header + payload) of a single AMS
// frame. A declared length outside this bound is treated as corruption
// rather than a legitimately large message.
const MaxFrameLength = 4 * 1024 * 1024

// tcpPreambleSize is the size of the AMS/TCP header used by plain ADS
// (port 48898). Secure ADS (the TLS tunnel) omits this preamble entirely.
const tcpPreambleSize = 6

// AmsFrame is a decoded AMS header plus its payload.
type AmsFrame struct {
	Header  AmsHeader
	Payload []byte
}

// FrameMode selects which wire framing the codec uses.
type FrameMode int

const (
	// ModeTCPHeader prefixes every frame with the 6-byte AMS/TCP preamble.
	// Used for plain ADS over TCP port 48898.
	ModeTCPHeader FrameMode = iota
	// ModeRaw omits the preamble; the frame boundary is derived from the
	// AMS header's own DataLength field. Used inside a Secure ADS TLS tunnel.
	ModeRaw
)

// FrameCodec encodes AmsFrames to the wire and reassembles them from a
// stream of arbitrarily chunked inbound bytes.
type FrameCodec struct {
	mode FrameMode
	buf  []byte
}

// NewFrameCodec creates a codec for the given framing mode.
func NewFrameCodec(mode FrameMode) *FrameCodec {
	return &FrameCodec{mode: mode}
}

// Encode serializes frame according to the codec's mode.
func (c *FrameCodec) Encode(frame AmsFrame) []byte {
	if c.mode == ModeTCPHeader {
		buf := make([]byte, tcpPreambleSize+HeaderSize+len(frame.Payload))
		binary.LittleEndian.PutUint16(buf[0:2], 0)
		binary.LittleEndian.PutUint32(buf[2:6], uint32(HeaderSize+len(frame.Payload)))
		frame.Header.EncodeInto(buf[tcpPreambleSize:])
		copy(buf[tcpPreambleSize+HeaderSize:], frame.Payload)
		return buf
	}
	buf := make([]byte, HeaderSize+len(frame.Payload))
	frame.Header.EncodeInto(buf)
	copy(buf[HeaderSize:], frame.Payload)
	return buf
}

// Feed appends newly received bytes to the codec's reassembly buffer and
// returns every complete frame that can now be extracted. Partial frames
// are retained for the next call. A frame whose declared length exceeds
// MaxFrameLength is a protocol error; the buffer is discarded and an error
// returned so the caller can close the connection.
func (c *FrameCodec) Feed(data []byte) ([]AmsFrame, error) {
	c.buf = append(c.buf, data...)

	var frames []AmsFrame
	for {
		frame, consumed, err := c.tryExtract()
		if err != nil {
			c.buf = nil
			return frames, err
		}
		if consumed == 0 {
			break
		}
		c.buf = c.buf[consumed:]
		frames = append(frames, frame)
	}
	return frames, nil
}

func (c *FrameCodec) tryExtract() (AmsFrame, int, error) {
	if c.mode == ModeTCPHeader {
		if len(c.buf) < tcpPreambleSize {
			return AmsFrame{}, 0, nil
		}
		length := binary.LittleEndian.Uint32(c.buf[2:6])
		if length < HeaderSize || length > MaxFrameLength {
			return AmsFrame{}, 0, NewProtocolError("frame-decode", "AMS/TCP length out of range", nil)
		}
		total := tcpPreambleSize + int(length)
		if len(c.buf) < total {
			return AmsFrame{}, 0, nil
		}
		hdr, err := DecodeHeader(c.buf[tcpPreambleSize:])
		if err != nil {
			return AmsFrame{}, 0, err
		}
		payload := make([]byte, length-HeaderSize)
		copy(payload, c.buf[tcpPreambleSize+HeaderSize:total])
		return AmsFrame{Header: hdr, Payload: payload}, total, nil
	}

	if len(c.buf) < HeaderSize {
		return AmsFrame{}, 0, nil
	}
	dataLength := binary.LittleEndian.Uint32(c.buf[20:24])
	total := HeaderSize + int(dataLength)
	if total > MaxFrameLength {
		return AmsFrame{}, 0, NewProtocolError("frame-decode", "AMS frame exceeds maximum length", nil)
	}
	if len(c.buf) < total {
		return AmsFrame{}, 0, nil
	}
	hdr, err := DecodeHeader(c.buf)
	if err != nil {
		return AmsFrame{}, 0, err
	}
	payload := make([]byte, dataLength)
	copy(payload, c.buf[HeaderSize:total])
	return AmsFrame{Header: hdr, Payload: payload}, total, nil
}

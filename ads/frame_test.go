package ads

import (
	"bytes"
	"testing"
)

func testFrame(invokeId uint32, payload []byte) AmsFrame {
	return AmsFrame{
		Header: AmsHeader{
			TargetNetId: AmsNetId{192, 168, 1, 100, 1, 1},
			TargetPort:  851,
			SourceNetId: AmsNetId{192, 168, 1, 50, 1, 1},
			SourcePort:  32905,
			CommandId:   1,
			StateFlags:  StateFlagRequest,
			DataLength:  uint32(len(payload)),
			InvokeId:    invokeId,
		},
		Payload: payload,
	}
}

func TestFrameCodecTCPHeaderRoundTrip(t *testing.T) {
	codec := NewFrameCodec(ModeTCPHeader)
	frame := testFrame(1, []byte{1, 2, 3, 4})
	wire := codec.Encode(frame)

	decoder := NewFrameCodec(ModeTCPHeader)
	frames, err := decoder.Feed(wire)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Header.InvokeId != 1 || !bytes.Equal(frames[0].Payload, frame.Payload) {
		t.Fatalf("decoded frame mismatch: %+v", frames[0])
	}
}

func TestFrameCodecRawRoundTrip(t *testing.T) {
	codec := NewFrameCodec(ModeRaw)
	frame := testFrame(7, []byte("hello"))
	wire := codec.Encode(frame)

	decoder := NewFrameCodec(ModeRaw)
	frames, err := decoder.Feed(wire)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 || string(frames[0].Payload) != "hello" {
		t.Fatalf("decoded frame mismatch: %+v", frames)
	}
}

func TestFrameCodecStreamingAcrossArbitraryByteBoundaries(t *testing.T) {
	codec := NewFrameCodec(ModeTCPHeader)
	a := codec.Encode(testFrame(1, []byte("first-message")))
	b := codec.Encode(testFrame(2, []byte("second")))
	wire := append(append([]byte{}, a...), b...)

	decoder := NewFrameCodec(ModeTCPHeader)
	var got []AmsFrame
	for i := 0; i < len(wire); i++ {
		frames, err := decoder.Feed(wire[i : i+1])
		if err != nil {
			t.Fatalf("Feed byte %d: %v", i, err)
		}
		got = append(got, frames...)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames across byte-at-a-time feed, want 2", len(got))
	}
	if string(got[0].Payload) != "first-message" || string(got[1].Payload) != "second" {
		t.Fatalf("reassembled payload mismatch: %q, %q", got[0].Payload, got[1].Payload)
	}
}

func TestFrameCodecIncompleteFrameWaits(t *testing.T) {
	codec := NewFrameCodec(ModeRaw)
	wire := codec.Encode(testFrame(1, []byte("partial payload")))

	decoder := NewFrameCodec(ModeRaw)
	frames, err := decoder.Feed(wire[:HeaderSize+2])
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames yet, got %d", len(frames))
	}

	frames, err = decoder.Feed(wire[HeaderSize+2:])
	if err != nil {
		t.Fatalf("Feed remainder: %v", err)
	}
	if len(frames) != 1 || string(frames[0].Payload) != "partial payload" {
		t.Fatalf("expected the completed frame, got %+v", frames)
	}
}

func TestFrameCodecRawRejectsOversizedLength(t *testing.T) {
	buf := make([]byte, HeaderSize)
	h := AmsHeader{DataLength: MaxFrameLength + 1}
	h.EncodeInto(buf)

	decoder := NewFrameCodec(ModeRaw)
	_, err := decoder.Feed(buf)
	if err == nil {
		t.Fatalf("expected an error for a DataLength exceeding MaxFrameLength")
	}
}

func TestFrameCodecTCPHeaderRejectsOversizedLength(t *testing.T) {
	buf := make([]byte, tcpPreambleSize)
	bufLen := uint32(MaxFrameLength + 1)
	buf[2] = byte(bufLen)
	buf[3] = byte(bufLen >> 8)
	buf[4] = byte(bufLen >> 16)
	buf[5] = byte(bufLen >> 24)

	decoder := NewFrameCodec(ModeTCPHeader)
	_, err := decoder.Feed(buf)
	if err == nil {
		t.Fatalf("expected an error for an AMS/TCP length exceeding MaxFrameLength")
	}
}

package ads

import "testing"

func TestTlsConnectInfoEncodeDecodeRoundTrip(t *testing.T) {
	in := TlsConnectInfo{
		Flags:    FlagAmsAllowed | FlagServerInfo,
		Version:  1,
		NetId:    AmsNetId{192, 168, 1, 100, 1, 1},
		Hostname: "plc-01",
		Username: "Administrator",
		Password: "s3cret",
	}

	buf, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, consumed, err := DecodeTlsConnectInfo(buf)
	if err != nil {
		t.Fatalf("DecodeTlsConnectInfo: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buf))
	}
	if out.Flags != in.Flags || out.Version != in.Version || out.NetId != in.NetId {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
	if out.Hostname != in.Hostname || out.Username != in.Username || out.Password != in.Password {
		t.Fatalf("round trip string mismatch: got %+v, want %+v", out, in)
	}
}

func TestTlsConnectInfoEncodeWithoutCredentials(t *testing.T) {
	in := TlsConnectInfo{Flags: FlagServerInfo, Hostname: "plc-01"}
	buf, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) != tlsConnectInfoBaseSize {
		t.Fatalf("len(buf) = %d, want base size %d", len(buf), tlsConnectInfoBaseSize)
	}

	out, _, err := DecodeTlsConnectInfo(buf)
	if err != nil {
		t.Fatalf("DecodeTlsConnectInfo: %v", err)
	}
	if out.HasCredentials() {
		t.Fatalf("expected HasCredentials to be false")
	}
}

func TestTlsConnectInfoEncodeRejectsMismatchedCredentials(t *testing.T) {
	in := TlsConnectInfo{Username: "admin"}
	if _, err := in.Encode(); err == nil {
		t.Fatalf("expected an error when only Username is set")
	}
}

func TestDecodeTlsConnectInfoIncompleteBufferWaitsForMoreData(t *testing.T) {
	in := TlsConnectInfo{Flags: FlagServerInfo, Hostname: "plc-01"}
	buf, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, consumed, err := DecodeTlsConnectInfo(buf[:tlsConnectInfoBaseSize-1])
	if err != nil {
		t.Fatalf("expected no error for a short buffer, got %v", err)
	}
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0 for an incomplete buffer", consumed)
	}
	if out != (TlsConnectInfo{}) {
		t.Fatalf("expected a zero-value TlsConnectInfo for an incomplete buffer")
	}
}

func TestDecodeTlsConnectInfoRejectsOutOfRangeLength(t *testing.T) {
	buf := make([]byte, tlsConnectInfoBaseSize)
	buf[0] = 0xFF
	buf[1] = 0xFF // declared length 65535, far beyond tlsConnectInfoMaxSize

	_, _, err := DecodeTlsConnectInfo(buf)
	if err == nil {
		t.Fatalf("expected an error for a declared length beyond tlsConnectInfoMaxSize")
	}
}

func TestDecodeTlsConnectInfoWaitsWhenDeclaredLengthExceedsBuffer(t *testing.T) {
	in := TlsConnectInfo{Username: "admin", Password: "hunter2"}
	buf, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, consumed, err := DecodeTlsConnectInfo(buf[:len(buf)-1])
	if err != nil {
		t.Fatalf("expected no error when the buffer is short of the declared length, got %v", err)
	}
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0", consumed)
	}
}

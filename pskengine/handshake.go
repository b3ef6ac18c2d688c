package pskengine

import "golang.org/x/crypto/cryptobyte"

// TLS handshake message types this engine ever sends or parses (RFC 5246
// section 7.4). A PSK handshake never involves Certificate or
// CertificateRequest messages.
const (
	handshakeClientHello       uint8 = 1
	handshakeServerHello       uint8 = 2
	handshakeServerKeyExchange uint8 = 12
	handshakeServerHelloDone   uint8 = 14
	handshakeClientKeyExchange uint8 = 16
	handshakeFinished          uint8 = 20
)

// wrapHandshake prepends the 4-byte handshake header (1-byte type, 3-byte
// length) to a handshake message body.
func wrapHandshake(msgType uint8, body []byte) []byte {
	out := make([]byte, 0, 4+len(body))
	out = append(out, msgType, byte(len(body)>>16), byte(len(body)>>8), byte(len(body)))
	out = append(out, body...)
	return out
}

// buildClientHello constructs a ClientHello body offering only PSK cipher
// suites, TLS 1.2, and — critically — no extensions at all. TwinCAT's
// embedded TLS stack rejects a ClientHello carrying extensions it does not
// recognize, so this engine never writes an extensions field, not even an
// empty one.
func buildClientHello(clientRandom [32]byte, suites []uint16) []byte {
	var b cryptobyte.Builder
	b.AddUint16(tlsVersion12)
	b.AddBytes(clientRandom[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {}) // empty session_id
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, s := range suites {
			b.AddUint16(s)
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(0) // compression method: null
	})
	return b.BytesOrPanic()
}

type serverHello struct {
	version     uint16
	random      [32]byte
	sessionID   []byte
	cipherSuite uint16
	compression uint8
}

func parseServerHello(body []byte) (serverHello, error) {
	var sh serverHello
	s := cryptobyte.String(body)

	if !s.ReadUint16(&sh.version) {
		return sh, newEngineErr(ReasonProtocolError, "truncated ServerHello version", nil)
	}
	var random []byte
	if !s.ReadBytes(&random, 32) {
		return sh, newEngineErr(ReasonProtocolError, "truncated ServerHello random", nil)
	}
	copy(sh.random[:], random)

	var sessionID cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&sessionID) {
		return sh, newEngineErr(ReasonProtocolError, "truncated ServerHello session_id", nil)
	}
	sh.sessionID = append([]byte{}, sessionID...)

	if !s.ReadUint16(&sh.cipherSuite) {
		return sh, newEngineErr(ReasonProtocolError, "truncated ServerHello cipher_suite", nil)
	}
	var compression uint8
	if !s.ReadUint8(&compression) {
		return sh, newEngineErr(ReasonProtocolError, "truncated ServerHello compression_method", nil)
	}
	sh.compression = compression

	// A TwinCAT peer never sends extensions back to an extension-less
	// ClientHello, but tolerate an (unparsed) extensions block if present
	// rather than failing the handshake over it.
	return sh, nil
}

// parseServerKeyExchangePSK extracts the PSK identity hint, which may be
// empty. RFC 4279: struct { opaque psk_identity_hint<0..2^16-1>; }.
func parseServerKeyExchangePSK(body []byte) ([]byte, error) {
	s := cryptobyte.String(body)
	var hint cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&hint) {
		return nil, newEngineErr(ReasonProtocolError, "truncated ServerKeyExchange", nil)
	}
	return append([]byte{}, hint...), nil
}

// buildClientKeyExchangePSK builds the PSK ClientKeyExchange body: struct
// { opaque psk_identity<0..2^16-1>; }.
func buildClientKeyExchangePSK(identity []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(identity)
	})
	return b.BytesOrPanic()
}

package ads

import (
	"encoding/binary"

	"golang.org/x/text/encoding/charmap"
)

// TlsConnectInfo is the single application-layer handshake message
// exchanged immediately after the TLS (or TLS-PSK) handshake completes.
// Its wire format is little-endian and uses the Windows-1252 code page for
// its string fields, matching TwinCAT's own ANSI string handling.
const (
	tlsConnectInfoBaseSize = 64
	tlsConnectInfoMaxSize  = 512
	tlsConnectInfoHostLen  = 32
)

// TlsError is the error code carried in a TlsConnectInfo response.
type TlsError uint8

const (
	TlsErrorNone        TlsError = 0
	TlsErrorVersion     TlsError = 1
	TlsErrorCnMismatch  TlsError = 2
	TlsErrorUnknownCert TlsError = 3
	TlsErrorUnknownUser TlsError = 4
)

func (e TlsError) String() string {
	switch e {
	case TlsErrorNone:
		return "NoError"
	case TlsErrorVersion:
		return "Version"
	case TlsErrorCnMismatch:
		return "CnMismatch"
	case TlsErrorUnknownCert:
		return "UnknownCert"
	case TlsErrorUnknownUser:
		return "UnknownUser"
	default:
		return "Unknown"
	}
}

// TlsConnectInfo flag bits.
const (
	FlagResponse   uint16 = 0x01
	FlagAmsAllowed uint16 = 0x02
	FlagServerInfo uint16 = 0x04
	FlagOwnFile    uint16 = 0x08
	FlagSelfSigned uint16 = 0x10
	FlagIpAddr     uint16 = 0x20
	FlagIgnoreCn   uint16 = 0x40
	FlagAddRemote  uint16 = 0x80
)

// TlsConnectInfo is both the request this library sends after a TLS
// handshake and the response TwinCAT returns.
type TlsConnectInfo struct {
	Flags    uint16
	Version  uint8
	Error    TlsError
	NetId    AmsNetId
	Hostname string
	Username string
	Password string
}

// HasCredentials reports whether both a username and password are set.
// The wire format requires both or neither.
func (t TlsConnectInfo) HasCredentials() bool {
	return t.Username != "" && t.Password != ""
}

var win1252 = charmap.Windows1252

func encodeWin1252(s string) ([]byte, error) {
	b, err := win1252.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, NewProtocolError("tlsconnectinfo-encode", "string not representable in Windows-1252", err)
	}
	return b, nil
}

func decodeWin1252(b []byte) (string, error) {
	s, err := win1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", NewProtocolError("tlsconnectinfo-decode", "invalid Windows-1252 bytes", err)
	}
	return string(s), nil
}

// Encode serializes the TlsConnectInfo into its wire representation.
func (t TlsConnectInfo) Encode() ([]byte, error) {
	userBytes, err := encodeWin1252(t.Username)
	if err != nil {
		return nil, err
	}
	pwdBytes, err := encodeWin1252(t.Password)
	if err != nil {
		return nil, err
	}
	if len(userBytes) > 255 || len(pwdBytes) > 255 {
		return nil, NewProtocolError("tlsconnectinfo-encode", "username/password exceeds 255 bytes", nil)
	}
	if (len(userBytes) > 0) != (len(pwdBytes) > 0) {
		return nil, NewProtocolError("tlsconnectinfo-encode", "username and password must both be present or both absent", nil)
	}

	total := tlsConnectInfoBaseSize + len(userBytes) + len(pwdBytes)
	if total < tlsConnectInfoBaseSize || total > tlsConnectInfoMaxSize {
		return nil, NewProtocolError("tlsconnectinfo-encode", "encoded length out of range", nil)
	}

	hostBytes, err := encodeWin1252(t.Hostname)
	if err != nil {
		return nil, err
	}
	if len(hostBytes) > tlsConnectInfoHostLen {
		hostBytes = hostBytes[:tlsConnectInfoHostLen]
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(total))
	binary.LittleEndian.PutUint16(buf[2:4], t.Flags)
	buf[4] = t.Version
	buf[5] = byte(t.Error)
	copy(buf[6:12], t.NetId[:])
	buf[12] = byte(len(userBytes))
	buf[13] = byte(len(pwdBytes))
	// bytes 14..31 (18 bytes) stay zero: reserved
	copy(buf[32:32+len(hostBytes)], hostBytes)
	copy(buf[64:64+len(userBytes)], userBytes)
	copy(buf[64+len(userBytes):], pwdBytes)
	return buf, nil
}

// DecodeTlsConnectInfo parses a TlsConnectInfo from buf, returning the
// number of bytes consumed. buf may contain trailing bytes belonging to a
// later message; only the declared length is consumed.
func DecodeTlsConnectInfo(buf []byte) (TlsConnectInfo, int, error) {
	if len(buf) < tlsConnectInfoBaseSize {
		return TlsConnectInfo{}, 0, nil // incomplete, caller should wait for more bytes
	}
	length := binary.LittleEndian.Uint16(buf[0:2])
	if length < tlsConnectInfoBaseSize || length > tlsConnectInfoMaxSize {
		return TlsConnectInfo{}, 0, NewProtocolError("tlsconnectinfo-decode", "length out of range", nil)
	}
	if len(buf) < int(length) {
		return TlsConnectInfo{}, 0, nil // incomplete, caller should wait for more bytes
	}

	var t TlsConnectInfo
	t.Flags = binary.LittleEndian.Uint16(buf[2:4])
	t.Version = buf[4]
	t.Error = TlsError(buf[5])
	copy(t.NetId[:], buf[6:12])
	userLen := int(buf[12])
	pwdLen := int(buf[13])
	if (userLen > 0) != (pwdLen > 0) {
		return TlsConnectInfo{}, 0, NewProtocolError("tlsconnectinfo-decode", "username/password presence mismatch", nil)
	}

	hostname, err := decodeWin1252(trimNulls(buf[32:64]))
	if err != nil {
		return TlsConnectInfo{}, 0, err
	}
	t.Hostname = hostname

	if userLen > 0 {
		userStart := tlsConnectInfoBaseSize
		userEnd := userStart + userLen
		pwdEnd := userEnd + pwdLen
		if pwdEnd > int(length) || pwdEnd > len(buf) {
			return TlsConnectInfo{}, 0, NewProtocolError("tlsconnectinfo-decode", "credential fields exceed declared length", nil)
		}
		username, err := decodeWin1252(buf[userStart:userEnd])
		if err != nil {
			return TlsConnectInfo{}, 0, err
		}
		password, err := decodeWin1252(buf[userEnd:pwdEnd])
		if err != nil {
			return TlsConnectInfo{}, 0, err
		}
		t.Username = username
		t.Password = password
	}

	return t, int(length), nil
}

func trimNulls(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

package pskengine

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// Cipher suite identifiers, as assigned by IANA (RFC 4279, RFC 5487). These
// are the only suites this engine will ever offer or accept: TwinCAT's
// embedded TLS stack supports pure PSK key exchange and nothing else, so
// there is no reason (and no opportunity) to negotiate anything wider.
const (
	SuitePSKWithAES128CBCSHA    uint16 = 0x008C
	SuitePSKWithAES256CBCSHA    uint16 = 0x008D
	SuitePSKWithAES128CBCSHA256 uint16 = 0x00AE
	SuitePSKWithAES256CBCSHA384 uint16 = 0x00AF
)

// OfferedSuites lists the suites this engine advertises, in preference
// order (strongest first).
var OfferedSuites = []uint16{
	SuitePSKWithAES256CBCSHA384,
	SuitePSKWithAES128CBCSHA256,
	SuitePSKWithAES256CBCSHA,
	SuitePSKWithAES128CBCSHA,
}

type suiteInfo struct {
	id      uint16
	keyLen  int // AES key length in bytes
	macLen  int // HMAC output length in bytes
	macHash func() hash.Hash
	prfHash func() hash.Hash // TLS 1.2 PRF hash (SHA-256 unless the suite says otherwise)
}

var suiteTable = map[uint16]suiteInfo{
	SuitePSKWithAES256CBCSHA384: {SuitePSKWithAES256CBCSHA384, 32, 48, sha512.New384, sha512.New384},
	SuitePSKWithAES128CBCSHA256: {SuitePSKWithAES128CBCSHA256, 16, 32, sha256.New, sha256.New},
	SuitePSKWithAES256CBCSHA:    {SuitePSKWithAES256CBCSHA, 32, 20, sha1.New, sha256.New},
	SuitePSKWithAES128CBCSHA:    {SuitePSKWithAES128CBCSHA, 16, 20, sha1.New, sha256.New},
}

func lookupSuite(id uint16) (suiteInfo, bool) {
	s, ok := suiteTable[id]
	return s, ok
}

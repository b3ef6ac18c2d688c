package pskengine

import (
	"crypto/hmac"
	"hash"
)

// pHash implements the P_hash function of RFC 5246 section 5: an HMAC-based
// expansion used both by the TLS 1.2 PRF and, via prf below, by master
// secret and key block derivation.
func pHash(newHash func() hash.Hash, secret, seed []byte, length int) []byte {
	out := make([]byte, 0, length)
	h := hmac.New(newHash, secret)
	h.Write(seed)
	a := h.Sum(nil)

	for len(out) < length {
		h := hmac.New(newHash, secret)
		h.Write(a)
		h.Write(seed)
		out = append(out, h.Sum(nil)...)

		h = hmac.New(newHash, secret)
		h.Write(a)
		a = h.Sum(nil)
	}
	return out[:length]
}

// prf is the TLS 1.2 pseudo-random function: PRF(secret, label, seed).
func prf(newHash func() hash.Hash, secret []byte, label string, seed []byte, length int) []byte {
	full := make([]byte, 0, len(label)+len(seed))
	full = append(full, []byte(label)...)
	full = append(full, seed...)
	return pHash(newHash, secret, full, length)
}

// pskPreMasterSecret builds the RFC 4279 PSK pre-master secret:
// uint16-length-prefixed zero block of the same length as the PSK,
// followed by a uint16-length-prefixed copy of the PSK itself.
func pskPreMasterSecret(psk []byte) []byte {
	n := len(psk)
	out := make([]byte, 0, 4+2*n)
	out = append(out, byte(n>>8), byte(n))
	out = append(out, make([]byte, n)...)
	out = append(out, byte(n>>8), byte(n))
	out = append(out, psk...)
	return out
}

const masterSecretLen = 48

// deriveMasterSecret computes the TLS 1.2 master secret from the PSK and
// the hello randoms.
func deriveMasterSecret(newHash func() hash.Hash, psk, clientRandom, serverRandom []byte) []byte {
	pms := pskPreMasterSecret(psk)
	seed := append(append([]byte{}, clientRandom...), serverRandom...)
	return prf(newHash, pms, "master secret", seed, masterSecretLen)
}

// keyBlock holds the symmetric material derived from the master secret.
type keyBlock struct {
	clientMAC, serverMAC []byte
	clientKey, serverKey []byte
}

func deriveKeyBlock(newHash func() hash.Hash, masterSecret, clientRandom, serverRandom []byte, macLen, keyLen int) keyBlock {
	seed := append(append([]byte{}, serverRandom...), clientRandom...)
	need := 2*macLen + 2*keyLen
	block := prf(newHash, masterSecret, "key expansion", seed, need)

	kb := keyBlock{}
	off := 0
	kb.clientMAC = block[off : off+macLen]
	off += macLen
	kb.serverMAC = block[off : off+macLen]
	off += macLen
	kb.clientKey = block[off : off+keyLen]
	off += keyLen
	kb.serverKey = block[off : off+keyLen]
	return kb
}

// finishedVerifyData computes the Finished message's verify_data: always
// 12 bytes in TLS 1.2, regardless of which PRF hash the suite uses.
func finishedVerifyData(newHash func() hash.Hash, masterSecret []byte, label string, transcriptHash []byte) []byte {
	return prf(newHash, masterSecret, label, transcriptHash, 12)
}

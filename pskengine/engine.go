// Package pskengine implements a minimal, non-blocking TLS 1.2 client
// restricted to PSK (pre-shared key) cipher suites.
//
// It exists because TwinCAT's embedded TLS stack, when configured for
// Secure ADS PSK authentication, supports only RFC 4279 PSK key exchange
// and rejects a ClientHello carrying any extension it does not recognize.
// Go's standard crypto/tls implements neither, so this engine hand-rolls
// the handshake and record layer on top of the standard cryptographic
// primitives, following RFC 5246 and RFC 4279.
package pskengine

import (
	"crypto/rand"
)

// State is the engine's handshake lifecycle.
type State int

const (
	StateInitial State = iota
	StateHandshaking
	StateEstablished
	StateClosed
	StateFailed
)

// MaxPendingWriteBytes bounds how much plaintext may be buffered while the
// handshake is still in progress.
const MaxPendingWriteBytes = 256 * 1024

// Engine drives one client-side PSK TLS 1.2 connection. It is not safe for
// concurrent use; callers are expected to serialize access the way the
// surrounding session's single I/O worker does.
type Engine struct {
	identity []byte
	psk      [32]byte

	state State
	suite suiteInfo

	clientRandom [32]byte
	serverRandom [32]byte

	transcript      []byte
	readBuf         []byte
	handshakeAccum  []byte
	readCipher      *cipherState
	writeCipher     *cipherState
	readCipherOn    bool
	writeCipherOn   bool
	masterSecret    []byte

	pendingWrites [][]byte
	pendingSize   int
}

// New creates an engine for the given PSK identity (sent on the wire
// as-is) and 32-byte pre-shared key.
func New(identity []byte, psk [32]byte) *Engine {
	return &Engine{identity: append([]byte{}, identity...), psk: psk, state: StateInitial}
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Start transitions the engine from Initial to Handshaking and returns the
// ClientHello record to send.
func (e *Engine) Start() ([]byte, error) {
	if e.state != StateInitial {
		return nil, newEngineErr(ReasonInternalError, "Start called more than once", nil)
	}
	if _, err := rand.Read(e.clientRandom[:]); err != nil {
		return nil, newEngineErr(ReasonInternalError, "reading random bytes", err)
	}
	e.state = StateHandshaking

	body := buildClientHello(e.clientRandom, OfferedSuites)
	msg := wrapHandshake(handshakeClientHello, body)
	e.transcript = append(e.transcript, msg...)

	return encodePlainRecord(contentHandshake, msg), nil
}

// Write submits plaintext to be sent. Before the handshake completes it is
// buffered (subject to MaxPendingWriteBytes); once Established it is
// encrypted immediately and the resulting record(s) returned.
func (e *Engine) Write(plaintext []byte) ([]byte, error) {
	switch e.state {
	case StateEstablished:
		return e.encryptAppData(plaintext)
	case StateHandshaking:
		if e.pendingSize+len(plaintext) > MaxPendingWriteBytes {
			return nil, newEngineErr(ReasonWriteBufferFull, "pending write buffer exceeds cap", nil)
		}
		e.pendingWrites = append(e.pendingWrites, append([]byte{}, plaintext...))
		e.pendingSize += len(plaintext)
		return nil, nil
	default:
		return nil, newEngineErr(ReasonConnectionClosed, "engine is not handshaking or established", nil)
	}
}

func (e *Engine) encryptAppData(plaintext []byte) ([]byte, error) {
	var out []byte
	for len(plaintext) > 0 {
		chunk := plaintext
		if len(chunk) > maxRecordFragment {
			chunk = plaintext[:maxRecordFragment]
		}
		plaintext = plaintext[len(chunk):]
		ciphertext, err := e.writeCipher.encrypt(contentApplicationData, chunk)
		if err != nil {
			return nil, newEngineErr(ReasonInternalError, "encrypting application data", err)
		}
		out = append(out, encodeRecordHeader(contentApplicationData, len(ciphertext))...)
		out = append(out, ciphertext...)
	}
	return out, nil
}

// Abort marks the engine Failed for an externally observed condition (for
// instance a handshake timeout enforced by the caller's wheel timer) and
// returns a close_notify alert to send, if a transport is still usable.
func (e *Engine) Abort(reason Reason) []byte {
	if e.state == StateClosed || e.state == StateFailed {
		return nil
	}
	e.state = StateFailed
	return e.closeNotify()
}

func (e *Engine) closeNotify() []byte {
	alert := []byte{1, 0} // warning, close_notify
	if e.writeCipherOn {
		ct, err := e.writeCipher.encrypt(contentAlert, alert)
		if err != nil {
			return nil
		}
		return append(encodeRecordHeader(contentAlert, len(ct)), ct...)
	}
	return encodePlainRecord(contentAlert, alert)
}

// Close transitions the engine to Closed and returns a close_notify alert.
func (e *Engine) Close() []byte {
	out := e.closeNotify()
	e.state = StateClosed
	return out
}

func (e *Engine) fail(err *Error) *Error {
	e.state = StateFailed
	return err
}

// Feed processes newly received transport bytes. It returns any bytes that
// must be written back to the transport (handshake flight or drained
// buffered writes), any decrypted application data ready for the caller,
// whether the handshake just completed on this call, and a fatal error if
// the engine has failed.
func (e *Engine) Feed(data []byte) (toSend []byte, appData []byte, justEstablished bool, err error) {
	if e.state != StateHandshaking && e.state != StateEstablished {
		return nil, nil, false, newEngineErr(ReasonConnectionClosed, "engine is not active", nil)
	}

	e.readBuf = append(e.readBuf, data...)

	for len(e.readBuf) >= recordHeaderSize {
		hdr := decodeRecordHeader(e.readBuf[:recordHeaderSize])
		total := recordHeaderSize + int(hdr.length)
		if int(hdr.length) > maxRecordFragment+2048 {
			return toSend, appData, justEstablished, e.fail(newEngineErr(ReasonProtocolError, "oversize TLS record", nil))
		}
		if len(e.readBuf) < total {
			break
		}
		fragment := e.readBuf[recordHeaderSize:total]
		e.readBuf = e.readBuf[total:]

		var plaintext []byte
		if e.readCipherOn && hdr.contentType != contentChangeCipherSpec {
			pt, derr := e.readCipher.decrypt(hdr.contentType, fragment)
			if derr != nil {
				return toSend, appData, justEstablished, e.fail(newEngineErr(ReasonAuthenticationFailed, "record decryption failed", derr))
			}
			plaintext = pt
		} else {
			plaintext = fragment
		}

		switch hdr.contentType {
		case contentChangeCipherSpec:
			e.readCipherOn = true

		case contentAlert:
			return toSend, appData, justEstablished, e.fail(newEngineErr(ReasonProtocolError, "received TLS alert", nil))

		case contentHandshake:
			e.handshakeAccum = append(e.handshakeAccum, plaintext...)
			sent, done, herr := e.drainHandshakeMessages()
			toSend = append(toSend, sent...)
			if herr != nil {
				return toSend, appData, justEstablished, e.fail(herr)
			}
			if done {
				justEstablished = true
				e.state = StateEstablished
				drained, derr := e.drainPendingWrites()
				if derr != nil {
					return toSend, appData, justEstablished, e.fail(derr)
				}
				toSend = append(toSend, drained...)
			}

		case contentApplicationData:
			if e.state != StateEstablished {
				return toSend, appData, justEstablished, e.fail(newEngineErr(ReasonProtocolError, "application data before handshake completion", nil))
			}
			appData = append(appData, plaintext...)

		default:
			return toSend, appData, justEstablished, e.fail(newEngineErr(ReasonProtocolError, "unknown TLS content type", nil))
		}
	}

	return toSend, appData, justEstablished, nil
}

func (e *Engine) drainPendingWrites() ([]byte, error) {
	var out []byte
	for _, w := range e.pendingWrites {
		enc, err := e.encryptAppData(w)
		if err != nil {
			return nil, newEngineErr(ReasonInternalError, "draining buffered writes", err)
		}
		out = append(out, enc...)
	}
	e.pendingWrites = nil
	e.pendingSize = 0
	return out, nil
}

// drainHandshakeMessages parses as many complete handshake messages as are
// available in handshakeAccum, advancing the handshake state machine and
// returning any bytes that must be sent in response.
func (e *Engine) drainHandshakeMessages() (toSend []byte, done bool, err *Error) {
	for len(e.handshakeAccum) >= 4 {
		msgLen := int(e.handshakeAccum[1])<<16 | int(e.handshakeAccum[2])<<8 | int(e.handshakeAccum[3])
		if len(e.handshakeAccum) < 4+msgLen {
			break
		}
		msgType := e.handshakeAccum[0]
		body := e.handshakeAccum[4 : 4+msgLen]
		full := append([]byte{}, e.handshakeAccum[:4+msgLen]...)
		e.handshakeAccum = e.handshakeAccum[4+msgLen:]

		switch msgType {
		case handshakeServerHello:
			sh, perr := parseServerHello(body)
			if perr != nil {
				return toSend, false, perr.(*Error)
			}
			suite, ok := lookupSuite(sh.cipherSuite)
			if !ok {
				return toSend, false, newEngineErr(ReasonNoCompatibleSuite, "server chose an unsupported cipher suite", nil)
			}
			e.suite = suite
			e.serverRandom = sh.random
			e.transcript = append(e.transcript, full...)

		case handshakeServerKeyExchange:
			if _, perr := parseServerKeyExchangePSK(body); perr != nil {
				return toSend, false, perr.(*Error)
			}
			e.transcript = append(e.transcript, full...)

		case handshakeServerHelloDone:
			if len(body) != 0 {
				return toSend, false, newEngineErr(ReasonProtocolError, "ServerHelloDone carries a body", nil)
			}
			e.transcript = append(e.transcript, full...)
			flight, ferr := e.buildClientFlight()
			if ferr != nil {
				return toSend, false, ferr
			}
			toSend = append(toSend, flight...)

		case handshakeFinished:
			if !e.readCipherOn {
				return toSend, false, newEngineErr(ReasonProtocolError, "Finished received before ChangeCipherSpec", nil)
			}
			transcriptHash := e.suite.prfHash()
			transcriptHash.Write(e.transcript)
			want := finishedVerifyData(e.suite.prfHash, e.masterSecret, "server finished", transcriptHash.Sum(nil))
			if !constantTimeEqual(want, body) {
				return toSend, false, newEngineErr(ReasonAuthenticationFailed, "server Finished verify_data mismatch", nil)
			}
			e.transcript = append(e.transcript, full...)
			return toSend, true, nil

		default:
			return toSend, false, newEngineErr(ReasonProtocolError, "unexpected handshake message", nil)
		}
	}
	return toSend, false, nil
}

// buildClientFlight builds ClientKeyExchange, ChangeCipherSpec, and
// Finished once ServerHelloDone has been seen, deriving keys from the PSK
// and the two hello randoms.
func (e *Engine) buildClientFlight() ([]byte, *Error) {
	if e.suite.id == 0 {
		return nil, newEngineErr(ReasonProtocolError, "ServerHelloDone before ServerHello", nil)
	}

	ckeBody := buildClientKeyExchangePSK(e.identity)
	ckeMsg := wrapHandshake(handshakeClientKeyExchange, ckeBody)
	e.transcript = append(e.transcript, ckeMsg...)
	out := encodePlainRecord(contentHandshake, ckeMsg)

	e.masterSecret = deriveMasterSecret(e.suite.prfHash, e.psk[:], e.clientRandom[:], e.serverRandom[:])
	kb := deriveKeyBlock(e.suite.prfHash, e.masterSecret, e.clientRandom[:], e.serverRandom[:], e.suite.macLen, e.suite.keyLen)

	e.writeCipher = &cipherState{macKey: kb.clientMAC, key: kb.clientKey, macHash: e.suite.macHash}
	e.readCipher = &cipherState{macKey: kb.serverMAC, key: kb.serverKey, macHash: e.suite.macHash}

	out = append(out, encodePlainRecord(contentChangeCipherSpec, []byte{1})...)
	e.writeCipherOn = true

	transcriptHash := e.suite.prfHash()
	transcriptHash.Write(e.transcript)
	verifyData := finishedVerifyData(e.suite.prfHash, e.masterSecret, "client finished", transcriptHash.Sum(nil))
	finMsg := wrapHandshake(handshakeFinished, verifyData)
	e.transcript = append(e.transcript, finMsg...)

	ct, encErr := e.writeCipher.encrypt(contentHandshake, finMsg)
	if encErr != nil {
		return nil, newEngineErr(ReasonInternalError, "encrypting client Finished", encErr)
	}
	out = append(out, encodeRecordHeader(contentHandshake, len(ct))...)
	out = append(out, ct...)

	return out, nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

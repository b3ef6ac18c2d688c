package pskengine

import (
	"bytes"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/cryptobyte"
)

// fakeServer plays the TwinCAT side of a PSK handshake by reusing the same
// primitives the engine itself is built from, so the test can independently
// verify the engine's Finished message and produce one of its own.
type fakeServer struct {
	psk          [32]byte
	serverRandom [32]byte
	suite        suiteInfo
	transcript   []byte
	masterSecret []byte
	kb           keyBlock
	writeCipher  *cipherState // server -> client, using serverMAC/serverKey
	readCipher   *cipherState // client -> server, using clientMAC/clientKey
}

func newFakeServer(psk [32]byte) *fakeServer {
	s := &fakeServer{psk: psk}
	rand.Read(s.serverRandom[:])
	s.suite, _ = lookupSuite(SuitePSKWithAES128CBCSHA256)
	return s
}

func (s *fakeServer) hello(clientRandom [32]byte, clientHelloMsg []byte) []byte {
	s.transcript = append(s.transcript, clientHelloMsg...)

	var b cryptobyte.Builder
	b.AddUint16(tlsVersion12)
	b.AddBytes(s.serverRandom[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {})
	b.AddUint16(s.suite.id)
	b.AddUint8(0)
	shMsg := wrapHandshake(handshakeServerHello, b.BytesOrPanic())

	skeMsg := wrapHandshake(handshakeServerKeyExchange, []byte{0, 0})
	shdMsg := wrapHandshake(handshakeServerHelloDone, nil)

	s.transcript = append(s.transcript, shMsg...)
	s.transcript = append(s.transcript, skeMsg...)
	s.transcript = append(s.transcript, shdMsg...)

	s.masterSecret = deriveMasterSecret(s.suite.prfHash, s.psk[:], clientRandom[:], s.serverRandom[:])
	s.kb = deriveKeyBlock(s.suite.prfHash, s.masterSecret, clientRandom[:], s.serverRandom[:], s.suite.macLen, s.suite.keyLen)
	s.readCipher = &cipherState{macKey: s.kb.clientMAC, key: s.kb.clientKey, macHash: s.suite.macHash}
	s.writeCipher = &cipherState{macKey: s.kb.serverMAC, key: s.kb.serverKey, macHash: s.suite.macHash}

	return encodePlainRecord(contentHandshake, append(append(append([]byte{}, shMsg...), skeMsg...), shdMsg...))
}

// verifyClientFinished parses the client's flight (ClientKeyExchange +
// ChangeCipherSpec + encrypted Finished, as three concatenated records),
// checks the Finished verify_data against an independently computed value,
// and returns the server's own ChangeCipherSpec + Finished flight.
func (s *fakeServer) verifyClientFinishedAndReply(t *testing.T, clientFlight []byte) []byte {
	t.Helper()
	buf := clientFlight

	// ClientKeyExchange: plain handshake record.
	hdr := decodeRecordHeader(buf[:recordHeaderSize])
	if hdr.contentType != contentHandshake {
		t.Fatalf("expected ClientKeyExchange record, got content type %d", hdr.contentType)
	}
	ckeMsg := buf[recordHeaderSize : recordHeaderSize+int(hdr.length)]
	s.transcript = append(s.transcript, ckeMsg...)
	buf = buf[recordHeaderSize+int(hdr.length):]

	// ChangeCipherSpec.
	hdr = decodeRecordHeader(buf[:recordHeaderSize])
	if hdr.contentType != contentChangeCipherSpec {
		t.Fatalf("expected ChangeCipherSpec record, got content type %d", hdr.contentType)
	}
	buf = buf[recordHeaderSize+int(hdr.length):]

	// Finished, encrypted under the client write cipher.
	hdr = decodeRecordHeader(buf[:recordHeaderSize])
	if hdr.contentType != contentHandshake {
		t.Fatalf("expected an encrypted Finished record, got content type %d", hdr.contentType)
	}
	encFinished := buf[recordHeaderSize : recordHeaderSize+int(hdr.length)]
	plainFinished, err := s.readCipher.decrypt(contentHandshake, encFinished)
	if err != nil {
		t.Fatalf("decrypting client Finished: %v", err)
	}
	if plainFinished[0] != handshakeFinished {
		t.Fatalf("decrypted message type = %d, want Finished", plainFinished[0])
	}
	gotVerifyData := plainFinished[4:]

	th := s.suite.prfHash()
	th.Write(s.transcript)
	wantVerifyData := finishedVerifyData(s.suite.prfHash, s.masterSecret, "client finished", th.Sum(nil))
	if !bytes.Equal(gotVerifyData, wantVerifyData) {
		t.Fatalf("client Finished verify_data mismatch: got %x want %x", gotVerifyData, wantVerifyData)
	}
	s.transcript = append(s.transcript, plainFinished...)

	th = s.suite.prfHash()
	th.Write(s.transcript)
	serverVerifyData := finishedVerifyData(s.suite.prfHash, s.masterSecret, "server finished", th.Sum(nil))
	serverFinMsg := wrapHandshake(handshakeFinished, serverVerifyData)

	out := encodePlainRecord(contentChangeCipherSpec, []byte{1})
	ct, err := s.writeCipher.encrypt(contentHandshake, serverFinMsg)
	if err != nil {
		t.Fatalf("encrypting server Finished: %v", err)
	}
	out = append(out, encodeRecordHeader(contentHandshake, len(ct))...)
	out = append(out, ct...)
	return out
}

func (s *fakeServer) encryptAppData(plaintext []byte) []byte {
	ct, _ := s.writeCipher.encrypt(contentApplicationData, plaintext)
	return append(encodeRecordHeader(contentApplicationData, len(ct)), ct...)
}

func TestEngineFullHandshakeAndAppDataRoundTrip(t *testing.T) {
	var psk [32]byte
	rand.Read(psk[:])
	identity := []byte("test-plc-identity")

	engine := New(identity, psk)
	clientHelloRecord, err := engine.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	hdr := decodeRecordHeader(clientHelloRecord[:recordHeaderSize])
	if hdr.contentType != contentHandshake {
		t.Fatalf("ClientHello record content type = %d, want handshake", hdr.contentType)
	}
	clientHelloMsg := clientHelloRecord[recordHeaderSize:]

	server := newFakeServer(psk)
	serverFlight1 := server.hello(engine.clientRandom, clientHelloMsg)

	toSend, _, justEstablished, err := engine.Feed(serverFlight1)
	if err != nil {
		t.Fatalf("Feed(serverFlight1): %v", err)
	}
	if justEstablished {
		t.Fatalf("engine should not be established before the server's Finished arrives")
	}
	if len(toSend) == 0 {
		t.Fatalf("expected the engine to emit its client flight after ServerHelloDone")
	}

	serverFlight2 := server.verifyClientFinishedAndReply(t, toSend)

	_, _, justEstablished, err = engine.Feed(serverFlight2)
	if err != nil {
		t.Fatalf("Feed(serverFlight2): %v", err)
	}
	if !justEstablished {
		t.Fatalf("expected the engine to report justEstablished after the server Finished")
	}
	if engine.State() != StateEstablished {
		t.Fatalf("engine.State() = %v, want StateEstablished", engine.State())
	}

	clientToServer, err := engine.Write([]byte("ReadDeviceInfo request"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	chdr := decodeRecordHeader(clientToServer[:recordHeaderSize])
	decrypted, derr := server.readCipher.decrypt(contentApplicationData, clientToServer[recordHeaderSize:recordHeaderSize+int(chdr.length)])
	if derr != nil {
		t.Fatalf("server decrypting client app data: %v", derr)
	}
	if string(decrypted) != "ReadDeviceInfo request" {
		t.Fatalf("decrypted app data = %q, want %q", decrypted, "ReadDeviceInfo request")
	}

	serverAppData := server.encryptAppData([]byte("device info response"))
	_, appData, _, err := engine.Feed(serverAppData)
	if err != nil {
		t.Fatalf("Feed(serverAppData): %v", err)
	}
	if string(appData) != "device info response" {
		t.Fatalf("engine-decrypted app data = %q, want %q", appData, "device info response")
	}
}

func TestEngineWritesBufferedDuringHandshake(t *testing.T) {
	var psk [32]byte
	rand.Read(psk[:])
	engine := New([]byte("identity"), psk)
	if _, err := engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	toSend, err := engine.Write([]byte("buffered before handshake completes"))
	if err != nil {
		t.Fatalf("Write during handshake: %v", err)
	}
	if toSend != nil {
		t.Fatalf("expected Write to buffer rather than emit bytes mid-handshake")
	}
}

func TestEngineWriteRejectsOversizedPendingBuffer(t *testing.T) {
	var psk [32]byte
	rand.Read(psk[:])
	engine := New([]byte("identity"), psk)
	if _, err := engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	oversized := bytes.Repeat([]byte{0x41}, MaxPendingWriteBytes+1)
	if _, err := engine.Write(oversized); err == nil {
		t.Fatalf("expected an error writing more than MaxPendingWriteBytes before the handshake completes")
	}
}

func TestEngineStartCalledTwiceFails(t *testing.T) {
	var psk [32]byte
	engine := New([]byte("identity"), psk)
	if _, err := engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := engine.Start(); err == nil {
		t.Fatalf("expected an error calling Start twice")
	}
}

func TestEngineFeedRejectsUnknownCipherSuite(t *testing.T) {
	var psk [32]byte
	rand.Read(psk[:])
	identity := []byte("identity")

	engine := New(identity, psk)
	if _, err := engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var serverRandom [32]byte
	rand.Read(serverRandom[:])
	var b cryptobyte.Builder
	b.AddUint16(tlsVersion12)
	b.AddBytes(serverRandom[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {})
	b.AddUint16(0xFFFF) // unsupported suite
	b.AddUint8(0)
	shMsg := wrapHandshake(handshakeServerHello, b.BytesOrPanic())
	record := encodePlainRecord(contentHandshake, shMsg)

	if _, _, _, err := engine.Feed(record); err == nil {
		t.Fatalf("expected an error for an unsupported cipher suite")
	}
	if engine.State() != StateFailed {
		t.Fatalf("engine.State() = %v, want StateFailed", engine.State())
	}
}

func TestEngineAbortReturnsCloseNotify(t *testing.T) {
	engine := New([]byte("identity"), [32]byte{})
	alert := engine.Abort(ReasonHandshakeTimeout)
	if len(alert) == 0 {
		t.Fatalf("expected Abort to return a close_notify alert")
	}
	if engine.State() != StateFailed {
		t.Fatalf("engine.State() = %v, want StateFailed", engine.State())
	}
	if second := engine.Abort(ReasonHandshakeTimeout); second != nil {
		t.Fatalf("expected a second Abort to be a no-op, got %v", second)
	}
}

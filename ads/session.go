package ads

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"secureads/logging"
)

// pendingRequest tracks one in-flight Request awaiting its correlated
// response frame.
type pendingRequest struct {
	result chan AmsFrame
	err    chan error
	timer  *timerHandle
}

// Client is a connected Secure ADS (or plain ADS) session to a single PLC.
// All exported methods are safe for concurrent use.
type Client struct {
	conn       duplexConn
	codec      *FrameCodec
	cfg        AdsClientConfig
	sourceNet  AmsNetId
	sourcePort uint16

	invokeID uint32

	mu        sync.Mutex
	pending   map[uint32]*pendingRequest
	closed    bool
	closeOnce sync.Once
}

// Connect dials the PLC described by cfg, performing whatever secure
// handshake cfg.Secure selects before the AMS/ADS session is usable.
func Connect(ctx context.Context, cfg AdsClientConfig) (*Client, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	logging.DebugConnect("ads", addr)
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logging.DebugConnectError("ads", addr, err)
		return nil, NewTransportError("connect", "dialing "+addr, err)
	}

	var conn duplexConn = rawConn
	var codecMode FrameMode = ModeTCPHeader
	var leftover []byte

	if cfg.Secure != nil {
		// The secure transport upgrade and the TlsConnectInfo exchange that
		// follows it are both bounded by cfg.ConnectTimeout: a PLC that
		// accepts the TCP/TLS connection but never completes the Secure
		// ADS handshake must not hang Connect forever.
		handshakeCtx, hcancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer hcancel()

		switch sec := cfg.Secure.(type) {
		case SelfSignedConfig:
			conn, err = wrapCertTLS(handshakeCtx, rawConn, sec.Cert)
		case SharedCaConfig:
			conn, err = wrapCertTLS(handshakeCtx, rawConn, sec.Cert)
		case PskConfig:
			conn, err = dialPsk(handshakeCtx, rawConn, sec.PSK)
		default:
			err = NewConfigError("connect", "unsupported SecureAdsConfig variant", nil)
		}
		if err != nil {
			rawConn.Close()
			return nil, err
		}

		req, berr := buildTlsConnectInfoRequest(cfg)
		if berr != nil {
			conn.Close()
			return nil, berr
		}
		_, leftover, err = performHandshakeExchange(handshakeCtx, conn, req)
		if err != nil {
			conn.Close()
			return nil, err
		}
		// Once the secure transport is established the wire carries raw
		// AMS headers with no TCP-mode preamble.
		codecMode = ModeRaw
	}

	sourceNet := cfg.SourceNetId
	sourcePort := cfg.SourcePort
	if sourceNet.IsZero() {
		if tcpAddr, ok := rawConn.LocalAddr().(*net.TCPAddr); ok {
			if derived, derr := AmsNetIdFromIP(tcpAddr.IP.String()); derr == nil {
				sourceNet = derived
			}
		}
	}

	c := &Client{
		conn:       conn,
		codec:      NewFrameCodec(codecMode),
		cfg:        cfg,
		sourceNet:  sourceNet,
		sourcePort: sourcePort,
		pending:    make(map[uint32]*pendingRequest),
	}

	if len(leftover) > 0 {
		if _, ferr := c.codec.Feed(leftover); ferr != nil {
			conn.Close()
			return nil, ferr
		}
	}

	ensureSharedRuntime()
	go c.readLoop()

	logging.DebugConnectSuccess("ads", addr, "session established")
	return c, nil
}

func (c *Client) readLoop() {
	buf := make([]byte, 8192)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			frames, ferr := c.codec.Feed(buf[:n])
			for _, f := range frames {
				c.dispatch(f)
			}
			if ferr != nil {
				c.failAll(NewProtocolError("read-loop", "frame decode failed", ferr))
				return
			}
		}
		if err != nil {
			c.failAll(NewTransportError("read-loop", "connection closed", err))
			return
		}
	}
}

func (c *Client) dispatch(frame AmsFrame) {
	c.mu.Lock()
	req, ok := c.pending[frame.Header.InvokeId]
	if ok {
		delete(c.pending, frame.Header.InvokeId)
	}
	c.mu.Unlock()

	if !ok {
		// Unsolicited frame (e.g. a device notification this client never
		// subscribed to, or a response to an invoke id that already timed
		// out): log and release rather than leak it.
		logging.DebugLog("session", "dropping frame with unmatched invoke id %d (cmd %#x)", frame.Header.InvokeId, frame.Header.CommandId)
		return
	}
	req.timer.Cancel()
	req.result <- frame
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint32]*pendingRequest)
	c.mu.Unlock()

	for _, req := range pending {
		req.timer.Cancel()
		req.err <- err
	}
}

// Invoke sends a raw ADS command to targetPort on the connected PLC and
// returns the response frame, or an error describing why no response was
// obtained. This is the escape hatch for commands this package does not
// wrap with a typed convenience method.
func (c *Client) Invoke(cmd uint16, targetPort uint16, data []byte) (AmsFrame, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return AmsFrame{}, NewLifecycleError("invoke", "client is closed", nil)
	}
	invokeID := atomic.AddUint32(&c.invokeID, 1)

	req := &pendingRequest{
		result: make(chan AmsFrame, 1),
		err:    make(chan error, 1),
	}
	req.timer = scheduleTimeout(c.cfg.RequestTimeout, func() {
		c.mu.Lock()
		_, stillPending := c.pending[invokeID]
		if stillPending {
			delete(c.pending, invokeID)
		}
		c.mu.Unlock()
		if stillPending {
			req.err <- NewTimeoutError("invoke", fmt.Sprintf("no response for invoke id %d", invokeID), nil)
		}
	})
	c.pending[invokeID] = req
	c.mu.Unlock()

	header := AmsHeader{
		TargetNetId: c.cfg.TargetNetId,
		TargetPort:  c.cfg.TargetPort,
		SourceNetId: c.sourceNet,
		SourcePort:  c.sourcePort,
		CommandId:   cmd,
		StateFlags:  StateFlagRequest,
		DataLength:  uint32(len(data)),
		InvokeId:    invokeID,
	}
	if targetPort != 0 {
		header.TargetPort = targetPort
	}

	frame := AmsFrame{Header: header, Payload: data}
	if _, err := c.conn.Write(c.codec.Encode(frame)); err != nil {
		c.mu.Lock()
		delete(c.pending, invokeID)
		c.mu.Unlock()
		req.timer.Cancel()
		return AmsFrame{}, NewTransportError("invoke", "writing request frame", err)
	}

	select {
	case resp := <-req.result:
		if resp.Header.ErrorCode != ErrNoError {
			return resp, NewApplicationError("invoke", resp.Header.ErrorCode)
		}
		return resp, nil
	case err := <-req.err:
		return AmsFrame{}, err
	}
}

// ReadDeviceInfo issues AdsCmdReadDeviceInfo and decodes the response.
func (c *Client) ReadDeviceInfo() (DeviceInfo, error) {
	frame, err := c.Invoke(CmdReadDeviceInfo, 0, nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	return decodeDeviceInfo(frame.Payload)
}

// ReadState issues AdsCmdReadState and decodes the response.
func (c *Client) ReadState() (ReadStateResult, error) {
	frame, err := c.Invoke(CmdReadState, 0, nil)
	if err != nil {
		return ReadStateResult{}, err
	}
	return decodeReadState(frame.Payload)
}

// Close terminates the session, failing every in-flight request with a
// lifecycle error.
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.failAll(NewLifecycleError("close", "client closed by caller", nil))
		closeErr = c.conn.Close()
	})
	return closeErr
}

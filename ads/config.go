package ads

import (
	"crypto/tls"
	"crypto/x509"
	"time"
)

// CertificateSource supplies the client certificate/key pair and trusted
// root CA pool used by the certificate-based auth modes (SelfSigned,
// SharedCa). A file-backed implementation lives in the sibling config
// package; tests may substitute their own.
type CertificateSource interface {
	ClientCertificate() (tls.Certificate, error)
	RootCAs() (*x509.CertPool, error)
}

// PSKSource supplies the PSK identity and 32-byte key used by the Psk auth
// mode.
type PSKSource interface {
	Identity() []byte
	Key() ([32]byte, error)
}

// SecureAdsConfig is a closed sum type selecting how the transport to the
// peer is secured. The three concrete implementations below are the only
// permitted variants; callers select one by constructing it directly.
type SecureAdsConfig interface {
	secureAdsConfig()
}

// SelfSignedConfig configures the Self-Signed-Certificate auth mode. When
// Username/Password are set, the TlsConnectInfo request additionally asks
// the peer to register (add) this route.
type SelfSignedConfig struct {
	Cert     CertificateSource
	Username string
	Password string
	Hostname string
	AddRoute bool
	IgnoreCn bool
	IpAddr   bool
}

func (SelfSignedConfig) secureAdsConfig() {}

// SharedCaConfig configures the Shared-CA auth mode: both peers trust
// certificates issued by a common CA, so no route registration step is
// needed.
type SharedCaConfig struct {
	Cert     CertificateSource
	Hostname string
}

func (SharedCaConfig) secureAdsConfig() {}

// PskConfig configures the Pre-Shared-Key auth mode, driving the
// hand-rolled TLS-PSK engine instead of crypto/tls.
type PskConfig struct {
	PSK      PSKSource
	Hostname string
}

func (PskConfig) secureAdsConfig() {}

// AdsClientConfig describes one connection to a PLC, including its AMS
// routing identity and, optionally, how the transport should be secured.
type AdsClientConfig struct {
	Host string
	Port int // defaults to DefaultSecurePort if Secure != nil, else DefaultPlainPort

	TargetNetId AmsNetId
	TargetPort  uint16
	SourceNetId AmsNetId // zero value: derived from the local TCP address
	SourcePort  uint16

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	Secure SecureAdsConfig // nil selects plain ADS
}

// Option mutates an AdsClientConfig under construction.
type Option func(*AdsClientConfig)

// WithTargetAmsAddress sets the routing address of the PLC being addressed.
func WithTargetAmsAddress(netId AmsNetId, port uint16) Option {
	return func(c *AdsClientConfig) {
		c.TargetNetId = netId
		c.TargetPort = port
	}
}

// WithConnectTimeout overrides the default connect timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *AdsClientConfig) { c.ConnectTimeout = d }
}

// WithRequestTimeout overrides the default per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *AdsClientConfig) { c.RequestTimeout = d }
}

// WithSecure sets the Secure ADS auth mode.
func WithSecure(secure SecureAdsConfig) Option {
	return func(c *AdsClientConfig) { c.Secure = secure }
}

// Default timeouts applied by NewAdsClientConfig.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// NewAdsClientConfig builds a config for the given host, applying default
// timeouts before the supplied options run.
func NewAdsClientConfig(host string, opts ...Option) AdsClientConfig {
	c := AdsClientConfig{
		Host:           host,
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Port == 0 {
		if c.Secure != nil {
			c.Port = DefaultSecurePort
		} else {
			c.Port = DefaultPlainPort
		}
	}
	return c
}

// Package config handles YAML-backed persistence for ads.AdsClientConfig
// and supplies file/string-backed implementations of ads.CertificateSource
// and ads.PSKSource.
package config

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"secureads/ads"
)

// AuthMode selects which SecureAdsConfig variant a FileConfig's Auth block
// builds into.
type AuthMode string

const (
	AuthPlain      AuthMode = ""
	AuthSelfSigned AuthMode = "self-signed"
	AuthSharedCa   AuthMode = "shared-ca"
	AuthPsk        AuthMode = "psk"
)

// AuthConfig is the YAML representation of an ads.SecureAdsConfig. Only the
// fields relevant to Mode are consulted.
type AuthConfig struct {
	Mode AuthMode `yaml:"mode,omitempty"`

	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	CAFile   string `yaml:"ca_file,omitempty"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	AddRoute bool   `yaml:"add_route,omitempty"`
	IgnoreCn bool   `yaml:"ignore_cn,omitempty"`
	IpAddr   bool   `yaml:"ip_addr,omitempty"`

	// PSK identifies the pre-shared key, either as a 64-character hex
	// string or, failing that, a passphrase combined with Identity via
	// DerivePSK.
	PSK      string `yaml:"psk,omitempty"`
	Identity string `yaml:"identity,omitempty"`

	Hostname string `yaml:"hostname,omitempty"`
}

// FileConfig is the YAML document loaded from and saved to disk: one
// connection's worth of ads.AdsClientConfig plus its auth material.
type FileConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"`

	TargetNetId string `yaml:"target_net_id"`
	TargetPort  uint16 `yaml:"target_port"`
	SourceNetId string `yaml:"source_net_id,omitempty"`
	SourcePort  uint16 `yaml:"source_port,omitempty"`

	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	Auth AuthConfig `yaml:"auth,omitempty"`
}

// DefaultPath returns the conventional config file location under the
// user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".secureads", "config.yaml")
}

// Load reads a FileConfig from path.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save marshals cfg to YAML and writes it to path, creating any missing
// parent directory.
func (c *FileConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ClientConfig builds an ads.AdsClientConfig (and, for secure auth modes,
// the matching CertificateSource/PSKSource) from the loaded FileConfig.
func (c *FileConfig) ClientConfig() (ads.AdsClientConfig, error) {
	targetNetId, err := ads.ParseAmsNetId(c.TargetNetId)
	if err != nil {
		return ads.AdsClientConfig{}, fmt.Errorf("target_net_id: %w", err)
	}

	opts := []ads.Option{ads.WithTargetAmsAddress(targetNetId, c.TargetPort)}

	var sourceNetId ads.AmsNetId
	if c.SourceNetId != "" {
		sourceNetId, err = ads.ParseAmsNetId(c.SourceNetId)
		if err != nil {
			return ads.AdsClientConfig{}, fmt.Errorf("source_net_id: %w", err)
		}
	}
	if c.ConnectTimeout > 0 {
		opts = append(opts, ads.WithConnectTimeout(c.ConnectTimeout))
	}
	if c.RequestTimeout > 0 {
		opts = append(opts, ads.WithRequestTimeout(c.RequestTimeout))
	}

	secure, err := c.Auth.build()
	if err != nil {
		return ads.AdsClientConfig{}, err
	}
	if secure != nil {
		opts = append(opts, ads.WithSecure(secure))
	}

	cfg := ads.NewAdsClientConfig(c.Host, opts...)
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.SourceNetId != "" {
		cfg.SourceNetId = sourceNetId
	}
	if c.SourcePort != 0 {
		cfg.SourcePort = c.SourcePort
	}
	return cfg, nil
}

func (a AuthConfig) build() (ads.SecureAdsConfig, error) {
	switch a.Mode {
	case AuthPlain:
		return nil, nil

	case AuthSelfSigned:
		cert, err := a.certSource()
		if err != nil {
			return nil, err
		}
		return ads.SelfSignedConfig{
			Cert:     cert,
			Username: a.Username,
			Password: a.Password,
			Hostname: a.Hostname,
			AddRoute: a.AddRoute,
			IgnoreCn: a.IgnoreCn,
			IpAddr:   a.IpAddr,
		}, nil

	case AuthSharedCa:
		cert, err := a.certSource()
		if err != nil {
			return nil, err
		}
		return ads.SharedCaConfig{Cert: cert, Hostname: a.Hostname}, nil

	case AuthPsk:
		psk, err := a.pskSource()
		if err != nil {
			return nil, err
		}
		return ads.PskConfig{PSK: psk, Hostname: a.Hostname}, nil

	default:
		return nil, fmt.Errorf("config: unknown auth mode %q", a.Mode)
	}
}

func (a AuthConfig) certSource() (ads.CertificateSource, error) {
	if a.CertFile == "" || a.KeyFile == "" {
		return nil, fmt.Errorf("config: auth mode %q requires cert_file and key_file", a.Mode)
	}
	return &FileCertificateSource{
		CertFile: a.CertFile,
		KeyFile:  a.KeyFile,
		CAFile:   a.CAFile,
	}, nil
}

func (a AuthConfig) pskSource() (ads.PSKSource, error) {
	if a.PSK == "" {
		return nil, fmt.Errorf("config: auth mode %q requires psk", a.Mode)
	}
	if raw, err := hex.DecodeString(a.PSK); err == nil && len(raw) == 32 {
		var key [32]byte
		copy(key[:], raw)
		return StaticPSKSource{identity: []byte(a.Identity), key: key}, nil
	}
	key, err := DerivePSK(a.Identity, a.PSK)
	if err != nil {
		return nil, err
	}
	return StaticPSKSource{identity: []byte(a.Identity), key: key}, nil
}

// FileCertificateSource implements ads.CertificateSource by loading a PEM
// client certificate/key pair and, optionally, a PEM CA bundle from disk.
type FileCertificateSource struct {
	CertFile string
	KeyFile  string
	CAFile   string // empty: use the system root pool
}

func (f *FileCertificateSource) ClientCertificate() (tls.Certificate, error) {
	return tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
}

func (f *FileCertificateSource) RootCAs() (*x509.CertPool, error) {
	if f.CAFile == "" {
		return x509.SystemCertPool()
	}
	pem, err := os.ReadFile(f.CAFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("config: %s contains no usable certificates", f.CAFile)
	}
	return pool, nil
}

// StaticPSKSource implements ads.PSKSource from an in-memory identity and
// 32-byte key.
type StaticPSKSource struct {
	identity []byte
	key      [32]byte
}

// NewStaticPSKSource wraps an already-derived key.
func NewStaticPSKSource(identity string, key [32]byte) StaticPSKSource {
	return StaticPSKSource{identity: []byte(identity), key: key}
}

func (s StaticPSKSource) Identity() []byte    { return s.identity }
func (s StaticPSKSource) Key() ([32]byte, error) { return s.key, nil }

// DerivePSK derives a 32-byte key from an identity and passphrase the way
// TwinCAT's Secure ADS PSK dialog does: SHA-256(uppercase(identity) +
// passphrase). Callers that already hold a raw 32-byte or 64-hex-char key
// should use NewStaticPSKSource directly instead.
func DerivePSK(identity, passphrase string) ([32]byte, error) {
	if passphrase == "" {
		return [32]byte{}, fmt.Errorf("config: PSK passphrase must not be empty")
	}
	h := sha256.Sum256([]byte(strings.ToUpper(identity) + passphrase))
	return h, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"secureads/ads"
)

func TestFileConfigSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	original := &FileConfig{
		Host:           "192.168.1.50",
		TargetNetId:    "192.168.1.50.1.1",
		TargetPort:     851,
		ConnectTimeout: 3 * time.Second,
		RequestTimeout: 2 * time.Second,
		Auth: AuthConfig{
			Mode:     AuthPsk,
			PSK:      "hunter2-passphrase",
			Identity: "secureads-client",
		},
	}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Host != original.Host || loaded.TargetNetId != original.TargetNetId {
		t.Fatalf("round trip mismatch: got %+v, want %+v", loaded, original)
	}
	if loaded.ConnectTimeout != original.ConnectTimeout {
		t.Fatalf("connect timeout mismatch: got %v want %v", loaded.ConnectTimeout, original.ConnectTimeout)
	}
}

func TestClientConfigPlain(t *testing.T) {
	fc := &FileConfig{
		Host:        "10.0.0.5",
		TargetNetId: "10.0.0.5.1.1",
		TargetPort:  851,
	}
	cc, err := fc.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	if cc.Secure != nil {
		t.Fatalf("expected plain auth mode to leave Secure nil")
	}
	if cc.Port == 0 {
		t.Fatalf("expected a default plain ADS port to be filled in")
	}
}

func TestClientConfigPskDerivesKey(t *testing.T) {
	fc := &FileConfig{
		Host:        "10.0.0.5",
		TargetNetId: "10.0.0.5.1.1",
		TargetPort:  851,
		Auth: AuthConfig{
			Mode:     AuthPsk,
			PSK:      "correct horse battery staple",
			Identity: "plc-01",
		},
	}
	cc, err := fc.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	psk, ok := cc.Secure.(ads.PskConfig)
	if !ok {
		t.Fatalf("expected Secure to be a PskConfig, got %T", cc.Secure)
	}
	if len(psk.PSK.Identity()) == 0 {
		t.Fatalf("expected identity to be populated")
	}
	if _, err := psk.PSK.Key(); err != nil {
		t.Fatalf("Key: %v", err)
	}
}

func TestClientConfigUnknownAuthMode(t *testing.T) {
	fc := &FileConfig{
		Host:        "10.0.0.5",
		TargetNetId: "10.0.0.5.1.1",
		TargetPort:  851,
		Auth:        AuthConfig{Mode: "bogus"},
	}
	if _, err := fc.ClientConfig(); err == nil {
		t.Fatalf("expected an error for an unknown auth mode")
	}
}

func TestDerivePSKRejectsEmptyPassphrase(t *testing.T) {
	if _, err := DerivePSK("identity", ""); err == nil {
		t.Fatalf("expected an error for an empty passphrase")
	}
}

func TestDerivePSKIsDeterministic(t *testing.T) {
	a, err := DerivePSK("plc-01", "correct horse battery staple")
	if err != nil {
		t.Fatalf("DerivePSK: %v", err)
	}
	b, err := DerivePSK("PLC-01", "correct horse battery staple")
	if err != nil {
		t.Fatalf("DerivePSK: %v", err)
	}
	if a != b {
		t.Fatalf("expected identity case-folding to produce the same key")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRelayURL(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"plain", Config{RelayHost: "example.com", RelayPort: 8000, RelayPath: "/ws"}, "ws://example.com:8000/ws"},
		{"tls", Config{RelayHost: "example.com", RelayPort: 8000, RelayPath: "/ws", TLS: true}, "wss://example.com:8000/ws"},
		{"default path", Config{RelayHost: "10.0.0.2", RelayPort: 9000}, "ws://10.0.0.2:9000/ws"},
		{"ipv6", Config{RelayHost: "::1", RelayPort: 8000, RelayPath: "/ws"}, "ws://[::1]:8000/ws"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.RelayURL(); got != tc.want {
				t.Errorf("RelayURL: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSecureContext(t *testing.T) {
	testCases := []struct {
		host string
		tls  bool
		want bool
	}{
		{"localhost", false, true},
		{"127.0.0.1", false, true},
		{"::1", false, true},
		{"192.168.1.10", false, false},
		{"example.com", false, false},
		{"example.com", true, true},
	}

	for _, tc := range testCases {
		cfg := Config{RelayHost: tc.host, TLS: tc.tls}
		if got := cfg.SecureContext(); got != tc.want {
			t.Errorf("SecureContext(%s, tls=%v): got %v, want %v", tc.host, tc.tls, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	peer := Default()
	peer.Role = RolePeer
	if err := peer.Validate(); err != nil {
		t.Fatalf("default peer config invalid: %v", err)
	}

	relay := Default()
	relay.Role = RoleRelay
	if err := relay.Validate(); err != nil {
		t.Fatalf("default relay config invalid: %v", err)
	}

	bad := []Config{
		{Role: "bogus"},
		{Role: RolePeer, RelayHost: "", RelayPort: 8000},
		{Role: RolePeer, RelayHost: "h", RelayPort: 70000},
		{Role: RolePeer, RelayHost: "h", RelayPort: 8000, AnswerTimeout: -time.Second},
		{Role: RoleRelay},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, cfg)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duet.yaml")
	content := `
role: peer
relay_host: relay.example.com
tls: true
answer_timeout: 5s
ice_servers:
  - stun:stun.example.com:3478
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Role != RolePeer || cfg.RelayHost != "relay.example.com" || !cfg.TLS {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.AnswerTimeout != 5*time.Second {
		t.Errorf("AnswerTimeout: got %v, want 5s", cfg.AnswerTimeout)
	}
	if cfg.RelayPort != DefaultRelayPort {
		t.Errorf("RelayPort default lost: got %d", cfg.RelayPort)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0] != "stun:stun.example.com:3478" {
		t.Errorf("ICEServers: got %v", cfg.ICEServers)
	}
	if !cfg.EarlyMedia {
		t.Error("EarlyMedia default lost")
	}
}

func TestLoadDisablesEarlyMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duet.yaml")
	if err := os.WriteFile(path, []byte("role: peer\nearly_media: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.EarlyMedia {
		t.Error("EarlyMedia: got true, want false")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

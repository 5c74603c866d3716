package http

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/jneless/bkp-drive/internal/config"
)

func TestProxyFuncWithBypass_EmptyNoProxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "", nil)

	req, _ := http.NewRequest("GET", "https://drive.example.com/api/v1/files", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %v", result)
	}
}

func TestProxyFuncWithBypass_Domain(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "example.com", nil)

	for _, host := range []string{"https://example.com/x", "https://drive.example.com/x"} {
		req, _ := http.NewRequest("GET", host, nil)
		result, err := proxyFunc(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Errorf("expected bypass for %s, got %v", host, result)
		}
	}

	req, _ := http.NewRequest("GET", "https://other.org/x", nil)
	if result, _ := proxyFunc(req); result == nil {
		t.Error("expected other.org to go through the proxy")
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := &config.Config{ProxyHost: "proxy.corp", ProxyUser: "u"}
	got := buildProxyURL(cfg)
	if got.Host != "proxy.corp:8080" {
		t.Errorf("Host = %q, want default port 8080", got.Host)
	}
	if got.User != nil {
		t.Error("credentials should not be embedded without a password")
	}

	cfg.ProxyPassword = "p"
	cfg.ProxyPort = 3128
	got = buildProxyURL(cfg)
	if got.Host != "proxy.corp:3128" || got.User == nil || got.User.Username() != "u" {
		t.Errorf("buildProxyURL() = %v", got)
	}
}

func TestConfigureHTTPClientModes(t *testing.T) {
	tests := []struct {
		mode    string
		host    string
		wantErr bool
	}{
		{"no-proxy", "", false},
		{"", "", false},
		{"system", "", false},
		{"basic", "", false}, // falls back to direct
		{"ntlm", "proxy.corp", false},
		{"socks5", "", true},
	}
	for _, tt := range tests {
		cfg := config.NewConfig()
		cfg.ProxyMode = tt.mode
		cfg.ProxyHost = tt.host
		client, err := ConfigureHTTPClient(cfg, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("mode %q: err = %v, wantErr %v", tt.mode, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && client == nil {
			t.Errorf("mode %q: nil client", tt.mode)
		}
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	cfg := &config.Config{ProxyMode: "ntlm", ProxyUser: "u"}
	if !NeedsProxyPassword(cfg) {
		t.Error("ntlm with user and no password should need a password")
	}
	cfg.ProxyPassword = "p"
	if NeedsProxyPassword(cfg) {
		t.Error("password already set")
	}
	if NeedsProxyPassword(&config.Config{ProxyMode: "system", ProxyUser: "u"}) {
		t.Error("system mode never prompts")
	}
}

func TestNewClientClearsTimeout(t *testing.T) {
	client, err := NewClient(config.NewConfig(), nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", client.Timeout)
	}
}

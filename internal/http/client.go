// Package http builds the HTTP transport used to reach the drive backend.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/jneless/bkp-drive/internal/config"
	"github.com/jneless/bkp-drive/internal/logging"
)

// NewClient returns a proxy-aware client tuned for the drive API.
//
// Connections are pooled per host and HTTP/2 is attempted for TLS backends.
// HTTP/2 is turned off when a proxy is active (proxies tend to break stream
// multiplexing) unless FORCE_HTTP2=true, and can be disabled outright with
// DISABLE_HTTP2=true. The overall timeout is cleared: uploads and downloads
// of large objects are bounded by their context instead.
func NewClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		// ntlm negotiator wraps the transport; leave it alone
		client.Timeout = 0
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	client.Transport = tr
	client.Timeout = 0
	return client, nil
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}

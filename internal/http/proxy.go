package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/jneless/bkp-drive/internal/config"
	"github.com/jneless/bkp-drive/internal/constants"
	"github.com/jneless/bkp-drive/internal/logging"
)

// ConfigureHTTPClient builds an HTTP client honouring the proxy settings in cfg.
func ConfigureHTTPClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	logger = logging.OrNop(logger)

	transport := newTransport()

	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm":
		if cfg.ProxyHost == "" {
			logger.Warn().Msg("proxy mode is ntlm but host is missing, connecting directly")
			return &nethttp.Client{Transport: transport, Timeout: constants.HTTPClientTimeout}, nil
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger)
		client := &nethttp.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: transport},
			Timeout:   constants.HTTPClientTimeout,
		}
		if err := maybeWarmup(client, cfg); err != nil {
			return nil, err
		}
		return client, nil

	case "basic":
		if cfg.ProxyHost == "" {
			logger.Warn().Msg("proxy mode is basic but host is missing, connecting directly")
			return &nethttp.Client{Transport: transport, Timeout: constants.HTTPClientTimeout}, nil
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger)
		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			logger.Warn().Msg("proxy user configured but password missing, proxy auth disabled")
		}
		client := &nethttp.Client{Transport: transport, Timeout: constants.HTTPClientTimeout}
		if err := maybeWarmup(client, cfg); err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	client := &nethttp.Client{Transport: transport, Timeout: constants.HTTPClientTimeout}
	if cfg.ProxyWarmup && strings.EqualFold(cfg.ProxyMode, "system") {
		if err := warmupProxy(client, cfg); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}
	return client, nil
}

func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// maybeWarmup only warms up when credentials are complete; an incomplete
// config is left for the caller to prompt for the password.
func maybeWarmup(client *nethttp.Client, cfg *config.Config) error {
	if !cfg.ProxyWarmup || cfg.ProxyUser == "" || cfg.ProxyPassword == "" {
		return nil
	}
	if err := warmupProxy(client, cfg); err != nil {
		return fmt.Errorf("proxy warmup failed: %w", err)
	}
	return nil
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	// an empty password in the URL breaks some proxies
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// warmupProxy sends one lightweight request through the proxy so that
// authentication happens before the first real call.
func warmupProxy(client *nethttp.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, cfg.BaseURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}
	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// With an empty noProxy it behaves like nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	logger = logging.OrNop(logger)
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("proxy bypass")
		} else {
			logger.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword reports whether an interactive password prompt is needed.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}

package thehive

import (
	"net/http"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	hiveURL      string
	hiveAPIKey   string
	cortexURL    string
	cortexAPIKey string
	httpClient   *http.Client
	timeout      time.Duration
	userAgent    string
}

// WithHiveURL sets the TheHive API base URL.
func WithHiveURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.hiveURL = url
	}
}

// WithHiveAPIKey sets the TheHive API key.
func WithHiveAPIKey(key string) ClientOption {
	return func(c *clientConfig) {
		c.hiveAPIKey = key
	}
}

// WithCortexURL sets the Cortex API base URL. Optional: when unset, the
// Analyzers and Jobs services return ErrNoCortex and analyzer jobs must be
// launched through the TheHive connector instead.
func WithCortexURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.cortexURL = url
	}
}

// WithCortexAPIKey sets the Cortex API key.
func WithCortexAPIKey(key string) ClientOption {
	return func(c *clientConfig) {
		c.cortexAPIKey = key
	}
}

// WithHTTPClient sets a custom HTTP client, shared by both transports.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the default request timeout.
// Note: This option is ignored when WithHTTPClient is used;
// set the timeout directly on the provided client instead.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// RequestOption configures individual API requests.
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers http.Header
}

func newRequestConfig() *requestConfig {
	return &requestConfig{
		headers: make(http.Header),
	}
}

func (r *requestConfig) apply(opts ...RequestOption) {
	for _, opt := range opts {
		opt(r)
	}
}

// WithHeader adds a custom header to a request.
func WithHeader(key, value string) RequestOption {
	return func(r *requestConfig) {
		r.headers.Set(key, value)
	}
}

// WithHeaders adds multiple custom headers to a request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *requestConfig) {
		for k, v := range headers {
			r.headers.Set(k, v)
		}
	}
}

// WithRequestID sets the X-Request-ID header for tracing.
func WithRequestID(id string) RequestOption {
	return WithHeader("X-Request-ID", id)
}

package thehive

import (
	"net/http"
	"time"

	"github.com/mkivela/go-thehive/internal/api"
	"github.com/mkivela/go-thehive/internal/auth"
)

// Default configuration values.
const defaultTimeout = 30 * time.Second

// Client is the TheHive/Cortex API client.
type Client struct {
	// Alerts provides access to alert operations.
	Alerts AlertService

	// Cases provides access to case operations.
	Cases CaseService

	// Observables provides access to observable operations on cases.
	Observables ObservableService

	// Connectors lists and launches Cortex analyzers and responders
	// through TheHive's Cortex connector.
	Connectors ConnectorService

	// Analyzers talks to Cortex directly. Requires WithCortexURL.
	Analyzers AnalyzerService

	// Jobs reads and polls Cortex jobs. Requires WithCortexURL.
	Jobs JobService

	hive   *api.Transport
	cortex *api.Transport
}

// NewClient creates a new client with the given options.
//
// TheHive URL and API key are required. The Cortex pair is optional; when
// absent, the Cortex-bound services (Analyzers, Jobs) return ErrNoCortex.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.hiveURL == "" {
		return nil, ErrNoHiveURL
	}

	if cfg.hiveAPIKey == "" {
		return nil, ErrNoCredentials
	}

	if (cfg.cortexURL == "") != (cfg.cortexAPIKey == "") {
		return nil, ErrNoCortex
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.timeout,
		}
	}

	hive, err := api.NewTransport(cfg.hiveURL, &auth.Credentials{APIKey: cfg.hiveAPIKey}, httpClient)
	if err != nil {
		return nil, err
	}

	client := &Client{hive: hive}

	if cfg.cortexURL != "" {
		cortex, err := api.NewTransport(cfg.cortexURL, &auth.Credentials{APIKey: cfg.cortexAPIKey}, httpClient)
		if err != nil {
			return nil, err
		}
		client.cortex = cortex
	}

	if cfg.userAgent != "" {
		hive.UserAgent = cfg.userAgent
		if client.cortex != nil {
			client.cortex.UserAgent = cfg.userAgent
		}
	}

	// Initialize services
	client.Alerts = newAlertService(hive)
	client.Cases = newCaseService(hive)
	client.Observables = newObservableService(hive)
	client.Connectors = newConnectorService(hive)
	client.Analyzers = newAnalyzerService(client.cortex)
	client.Jobs = newJobService(client.cortex)

	return client, nil
}

// HiveURL returns the configured TheHive base URL.
func (c *Client) HiveURL() string {
	return c.hive.BaseURL.String()
}

// CortexURL returns the configured Cortex base URL, or "" when Cortex is
// not configured.
func (c *Client) CortexURL() string {
	if c.cortex == nil {
		return ""
	}
	return c.cortex.BaseURL.String()
}

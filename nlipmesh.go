// Package nlipmesh provides a high-level façade over the core subsystems of
// this repository: the session PII interceptor and the multi-backend answer
// arbitrator, plus the gateway and server plumbing the demo applications
// share. Most applications interact with this package by:
//  1. Loading a config.Config (file, env or defaults)
//  2. Creating a Mesh via New()
//  3. Hosting an Application with NewServer() or calling Arbitrator() directly
//
// All defaults are safe for local development against an Ollama server;
// production deployments supply hosted gateway credentials and a structured
// logger through the configuration.
package nlipmesh

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/nlip-soln/nlipmesh/arbiter"
	"github.com/nlip-soln/nlipmesh/config"
	"github.com/nlip-soln/nlipmesh/gateway"
	"github.com/nlip-soln/nlipmesh/gateway/anthropic"
	"github.com/nlip-soln/nlipmesh/gateway/ollama"
	"github.com/nlip-soln/nlipmesh/gateway/openai"
	"github.com/nlip-soln/nlipmesh/interceptor"
	"github.com/nlip-soln/nlipmesh/logging"
	"github.com/nlip-soln/nlipmesh/pii"
	"github.com/nlip-soln/nlipmesh/server"
)

// Options configure the Mesh beyond what config.Config carries. Any unset
// component is built from the configuration.
type Options struct {
	Logger logging.Logger
	// Gateway overrides the configured default text-completion backend.
	Gateway gateway.Gateway
	// Detector overrides the model-backed PII detector.
	Detector pii.Detector
	// BackendFactory overrides how arbitration backends become gateways.
	BackendFactory arbiter.GatewayFactory
}

// Mesh aggregates the configured core components.
type Mesh struct {
	cfg    *config.Config
	logger logging.Logger
	gw     gateway.Gateway
	icept  *interceptor.Interceptor
	arb    *arbiter.Arbitrator
}

// New creates a Mesh from the configuration.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Mesh, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	}

	gw := opts.Gateway
	if gw == nil {
		built, err := buildGateway(cfg.Gateway)
		if err != nil {
			return nil, err
		}
		gw = built
	}
	if cfg.Gateway.RatePerSecond > 0 {
		gw = gateway.NewThrottled(gw, cfg.Gateway.RatePerSecond)
	}

	detector := opts.Detector
	if detector == nil {
		detectGw := gw
		if cfg.PII.Model != "" && cfg.PII.Model != cfg.Gateway.Model {
			// Detection may run against its own model on the same provider.
			detectCfg := cfg.Gateway
			detectCfg.Model = cfg.PII.Model
			built, err := buildGateway(detectCfg)
			if err != nil {
				return nil, err
			}
			detectGw = built
		}
		detector = pii.NewModelDetector(detectGw, func(o *pii.ModelDetectorOptions) {
			o.Logger = logger
		})
	}

	icept := interceptor.New(detector, func(o *interceptor.Options) {
		o.Enabled = cfg.PII.Enabled
		o.Logger = logger
	})

	backends := make([]arbiter.Backend, len(cfg.Backends))
	for i, b := range cfg.Backends {
		backends[i] = arbiter.Backend{Name: b.Name, Host: b.Host, Port: b.Port, Model: b.Model}
	}
	arb := arbiter.New(backends, func(o *arbiter.Options) {
		o.Timeout = cfg.BackendTimeout
		o.Logger = logger
		if opts.BackendFactory != nil {
			o.Factory = opts.BackendFactory
		}
	})

	return &Mesh{cfg: cfg, logger: logger, gw: gw, icept: icept, arb: arb}, nil
}

// buildGateway constructs the configured default gateway.
func buildGateway(cfg config.GatewayConfig) (gateway.Gateway, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(func(o *ollama.Options) {
			o.BaseURL = cfg.BaseURL()
			o.Model = cfg.Model
			o.Timeout = cfg.Timeout
		}), nil
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Timeout = cfg.Timeout
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Timeout = cfg.Timeout
		}), nil
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
	}
}

// Logger returns the mesh logger.
func (m *Mesh) Logger() logging.Logger { return m.logger }

// Gateway returns the default text-completion gateway.
func (m *Mesh) Gateway() gateway.Gateway { return m.gw }

// Interceptor returns the configured session PII interceptor.
func (m *Mesh) Interceptor() *interceptor.Interceptor { return m.icept }

// Arbitrator returns the configured multi-backend arbitrator.
func (m *Mesh) Arbitrator() *arbiter.Arbitrator { return m.arb }

// NewServer hosts the application behind the NLIP endpoint with the mesh's
// interceptor applied to every message.
func (m *Mesh) NewServer(app server.Application) (*server.Server, error) {
	return server.New(app, m.icept, func(o *server.Options) {
		o.Logger = m.logger
		o.IdleTimeout = m.cfg.SessionIdleTimeout
		o.SentryDSN = m.cfg.SentryDSN
	})
}

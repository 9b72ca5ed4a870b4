// Package gateway provides the public API for embedding relaypipe.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
	"github.com/tjfontaine/relaypipe/internal/runtime"
)

// Gateway is the main entry point for running relaypipe.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithSQLite("./data/exchanges.db"),
//	    gateway.WithRoute(http.MethodGet, "/v1/hello", gateway.Static(
//	        gateway.NewEndpoint("hello", func(ctx context.Context, req *gateway.Request) (any, error) {
//	            return map[string]string{"hello": "world"}, nil
//	        }),
//	    )),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfig         = runtime.WithConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Storage
	WithMemoryStorage   = runtime.WithMemoryStorage
	WithSQLite          = runtime.WithSQLite
	WithPostgres        = runtime.WithPostgres
	WithStorageProvider = runtime.WithStorageProvider

	// Events
	WithNATSEvents     = runtime.WithNATSEvents
	WithEventPublisher = runtime.WithEventPublisher

	// Routes
	WithRoute = runtime.WithRoute

	// Advanced options
	WithLogger             = runtime.WithLogger
	WithPrometheusRegistry = runtime.WithPrometheusRegistry
	WithHTTPClient         = runtime.WithHTTPClient
)

// Pipeline building blocks
type (
	Config       = config.Config
	Request      = domain.Request
	Response     = domain.Response
	HTTPError    = domain.HTTPError
	Participant  = ports.Participant
	Continuation = ports.Continuation
	EndpointFunc = participant.EndpointFunc
	Result       = participant.Result
	Factory      = pipeline.Factory
)

var (
	DefaultConfig = config.Default
	LoadConfig    = config.Load
	NewEndpoint   = participant.NewEndpoint
	NewHTTPError  = domain.NewHTTPError
	Static        = pipeline.Static
)

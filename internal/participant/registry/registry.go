// Package registry maps participant types named in configuration to the
// factories that build them.
//
// Built-in types are registered explicitly by registration.RegisterBuiltins
// rather than from init functions:
//
//	registry.Register(registry.Factory{
//	    Type:        "timeout",
//	    Description: "runs the rest of the chain under a deadline",
//	    Build: func(cfg config.StageConfig, deps registry.Deps) (ports.Participant, error) {
//	        return participant.NewTimeout(cfg.Timeout), nil
//	    },
//	})
package registry

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
)

// Deps are the process-wide collaborators factories may hand to the
// participants they build.
type Deps struct {
	Logger     *slog.Logger
	Metrics    *participant.Metrics
	Tracer     trace.Tracer
	Publishers []ports.EventPublisher
	HTTPClient *http.Client
}

// Factory builds participants of one type.
type Factory struct {
	// Type is the identifier used in pipeline.stages[].type.
	Type string

	// Description is a human-readable summary.
	Description string

	// Build creates a participant. It is called once per pipeline, so the
	// participant may keep per-request state.
	Build func(cfg config.StageConfig, deps Deps) (ports.Participant, error)
}

var (
	factoryMu   sync.RWMutex
	factoryMap  = make(map[string]Factory)
	factoryList []Factory
)

// Register registers a factory. It panics on an empty type, a missing Build
// function or a duplicate type.
func Register(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("participant factory type cannot be empty")
	}
	if f.Build == nil {
		panic(fmt.Sprintf("participant factory %q must have a Build function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("participant factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
	factoryList = append(factoryList, f)
}

// Lookup returns the factory for a type.
func Lookup(participantType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[participantType]
	return f, ok
}

// IsRegistered reports whether a type has a factory.
func IsRegistered(participantType string) bool {
	_, ok := Lookup(participantType)
	return ok
}

// Factories returns all registered factories sorted by type.
func Factories() []Factory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]Factory, len(factoryList))
	copy(result, factoryList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// Types returns all registered type names, sorted.
func Types() []string {
	factories := Factories()
	types := make([]string, len(factories))
	for i, f := range factories {
		types[i] = f.Type
	}
	return types
}

// Clear removes all registered factories (for testing only).
func Clear() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]Factory)
	factoryList = nil
}

// NewPlan turns stage configuration into a pipeline plan. Every stage is
// built once up front so configuration errors surface here rather than on
// the first request.
func NewPlan(stages []config.StageConfig, deps Deps) (*pipeline.Plan, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	plan := pipeline.NewPlan()
	for i, stage := range stages {
		f, ok := Lookup(stage.Type)
		if !ok {
			return nil, fmt.Errorf("stage %d (%s): unknown participant type %q", i, stage.StageName(), stage.Type)
		}
		if _, err := f.Build(stage, deps); err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, stage.StageName(), err)
		}

		plan.Add(stage.StageName(), func() (ports.Participant, error) {
			return f.Build(stage, deps)
		})
	}
	return plan, nil
}

/*
Package server exposes pipelines over HTTP.

# Middleware Chain

Every route passes through the same chi middleware before reaching a
pipeline:
 1. RequestIDMiddleware (first, so every log line carries the id)
 2. LoggingMiddleware (request started / request completed)
 3. TimeoutMiddleware (server.request_timeout)
 4. Recoverer (catches panics outside the pipeline)
 5. OTel instrumentation, when tracing is enabled

# Pipelines

Mount registers an endpoint under a route. Each request builds a fresh
pipeline from the current plan, pipes the endpoint last, dispatches the
request and writes the response. SetPlan swaps the plan atomically, so a
config reload never affects requests already in flight.

	srv := server.New(cfg.Server, logger)
	srv.SetPlan(plan)
	srv.Mount(http.MethodGet, "/v1/echo", pipeline.Static(echo))
*/
package server

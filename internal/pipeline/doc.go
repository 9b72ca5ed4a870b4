// Package pipeline provides the request/response dispatch core.
//
// A Pipeline is an ordered chain of participants that cooperatively transform
// an inbound request and an outbound response. Each participant receives the
// request, the response built so far and a continuation, and decides whether
// and when to invoke the remainder of the chain.
//
// # Queues
//
// Registration (Pipe) appends every participant to the main queue. Until the
// first error-capable participant is registered, participants are also
// appended to the error queue; registering that participant freezes the
// error queue for good. An error-capable participant that catches a
// downstream failure calls ActivateErrorQueue, which discards what is left of
// the main queue, and then continues: dispatch resumes from the head of the
// error queue so output participants such as serializers still format the
// error response.
//
// # Locking
//
// The first dispatch step locks the pipeline. Pipe fails with a LockedError
// from then on.
//
// # Dispatch
//
// Dispatch pops the head of the active queue and invokes it with a fresh
// continuation bound to the pipeline. When the queue is empty the response is
// returned unchanged. Errors returned by participants are never caught or
// translated here; they propagate up through however many continuations are
// active.
//
//	p := pipeline.New(c)
//	_ = p.Pipe(serializer.NewJSON())
//	_ = p.Pipe(participant.NewErrorHandler(logger))
//	_ = p.Pipe(endpoint)
//	resp, err := p.Dispatch(ctx, req, domain.NewResponse())
//
// A Pipeline serves one in-flight request. Build a fresh one per request from
// a Plan.
package pipeline

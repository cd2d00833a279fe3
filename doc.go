// Package tracelens provides buffered trace, span, generation, and score
// tracking for LLM applications, delivered in batches to an external
// observability sink.
//
// The central type is TraceSession: one session tracks exactly one trace and
// the strictly nested stack of observations (spans and generations) opened
// within it. Sessions are cheap; create one per logical unit of work (for
// example, one HTTP request) and never share a session across goroutines.
//
// # Quick Start
//
//	client, err := tracelens.New(
//	    os.Getenv("TRACELENS_PUBLIC_KEY"),
//	    os.Getenv("TRACELENS_SECRET_KEY"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	session := client.NewSession()
//	traceID, _ := session.StartTrace(
//	    tracelens.WithSessionID("conversation-42"),
//	    tracelens.WithUserID("user-123"),
//	)
//
//	span, _ := session.StartObservation(tracelens.KindSpan, "chat_completion",
//	    tracelens.WithInput(request))
//	gen, _ := session.StartObservation(tracelens.KindGeneration, "openai_completion",
//	    tracelens.WithModel("gpt-4o-mini"))
//
//	// ... call the completion provider ...
//
//	gen.End(tracelens.WithOutput(answer), tracelens.WithUsage(tracelens.Usage{
//	    InputTokens:  120,
//	    OutputTokens: 45,
//	}))
//	span.End(tracelens.WithOutput(answer))
//	session.End()
//
// Scores attach to a trace by identifier after the fact, even after the
// trace has been flushed:
//
//	err = session.RecordScore(traceID, "user-feedback", 0.9, "helpful answer")
//
// # Delivery Guarantees
//
// Events are buffered locally and sent in batches. Flush returns a
// FlushResult enumerating which events the sink accepted and which it
// rejected; it never panics and partial failure is not an error. Call
// Shutdown once at process exit to drain buffered-but-unsent records.
//
// Sink outages must never fail the primary application path: transport
// errors are retried with backoff behind a circuit breaker and ultimately
// degrade to "no trace recorded".
package tracelens

// Package tracelenstest provides testing utilities for applications using
// the tracelens-go SDK.
//
// # Sink Server
//
// SinkServer is an in-memory sink that records ingested events for
// inspection and can be told to reject specific events or fail outright:
//
//	sink := tracelenstest.NewSinkServer()
//	defer sink.Close()
//
//	client, _ := tracelens.New("pk", "sk",
//	    tracelens.WithBaseURL(sink.URL),
//	    tracelens.WithoutBreaker(),
//	)
//	// ... use client, flush ...
//
//	events := sink.Events()
//	scores := sink.EventsOfType("score-create")
//
// # Test Client
//
// NewTestClient wires a client to a fresh sink server and registers
// cleanup with the test:
//
//	client, sink := tracelenstest.NewTestClient(t)
//
// # Mocks
//
// CaptureLogger records structured log lines; MockMetrics records
// counters, gauges, and durations.
package tracelenstest

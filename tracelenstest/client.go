package tracelenstest

import (
	"context"
	"testing"
	"time"

	tracelens "github.com/tracelens/tracelens-go"
)

// NewTestClient creates a client wired to a fresh SinkServer. Both are
// cleaned up when the test ends; cleanup shuts the client down so
// buffered events drain into the sink.
func NewTestClient(t *testing.T, opts ...tracelens.ConfigOption) (*tracelens.Client, *SinkServer) {
	t.Helper()

	sink := NewSinkServer()

	base := []tracelens.ConfigOption{
		tracelens.WithBaseURL(sink.URL),
		tracelens.WithoutBreaker(),
		tracelens.WithMaxRetries(1),
		tracelens.WithRetryDelay(time.Millisecond),
		tracelens.WithShutdownTimeout(10 * time.Second),
	}
	client, err := tracelens.New("pk-test", "sk-test", append(base, opts...)...)
	if err != nil {
		sink.Close()
		t.Fatalf("failed to create test client: %v", err)
	}

	t.Cleanup(func() {
		client.Shutdown(context.Background())
		sink.Close()
	})
	return client, sink
}

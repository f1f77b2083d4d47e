package ingest

import (
	"testing"
	"time"

	"alertstate/internal/config"
	"alertstate/test/testutil"

	"github.com/nats-io/nats.go"
)

func TestNATSSubscriberForwardsResults(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration test in short mode")
	}

	url, stop := testutil.StartLocalNATSServer(t)
	defer stop()

	cfg := config.NATSIngestConfig{
		Enabled:       true,
		URL:           []string{url},
		Subject:       "alertstate.results.test",
		Stream:        "ALERTSTATE_RESULTS_TEST",
		ConsumerName:  "ingest-test",
		DeliverGroup:  "ingest-test",
		Workers:       2,
		AckWaitSec:    5,
		NackDelayMS:   50,
		MaxDeliver:    -1,
		MaxAckPending: 64,
	}
	sink := &httpTestSink{}
	subscriber, err := NewNATSSubscriber(cfg, sink, nil, nil)
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	defer subscriber.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	if _, err := js.Publish(cfg.Subject, []byte("not json")); err != nil {
		t.Fatalf("publish invalid: %v", err)
	}
	if _, err := js.Publish(cfg.Subject, []byte(testResultJSON("h1"))); err != nil {
		t.Fatalf("publish result: %v", err)
	}

	testutil.Eventually(t, 5*time.Second, func() bool { return sink.count() == 1 })
}

package e2e

import (
	"encoding/json"
	"testing"
	"time"

	"alertstate/internal/notifyqueue"
	"alertstate/test/testutil"

	"github.com/nats-io/nats.go"
)

func TestServiceNATSModeIngestsAndAnnounces(t *testing.T) {
	if testing.Short() {
		t.Skip("skip e2e test in short mode")
	}

	natsURL, stop := testutil.StartLocalNATSServer(t)
	defer stop()

	port := freePort(t)
	service := newServiceFromConfig(t, e2eNATSConfig(port, natsURL))
	cancel, done := runService(t, service)
	defer cancel()
	waitReady(t, port)

	nc, err := nats.Connect(natsURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	at := time.Now().UTC()
	if _, err := js.Publish("alertstate.results", []byte(resultJSON("nats-a", "Alerting", at))); err != nil {
		t.Fatalf("publish result: %v", err)
	}

	sub, err := js.SubscribeSync("alertstate.notifications", nats.BindStream("ALERTSTATE_NOTIFICATIONS"))
	if err != nil {
		t.Fatalf("subscribe notifications: %v", err)
	}
	defer sub.Unsubscribe()
	msg, err := sub.NextMsg(8 * time.Second)
	if err != nil {
		t.Fatalf("await notification: %v", err)
	}
	var job notifyqueue.Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Notification.State != "Alerting" || job.Notification.Labels["host"] != "nats-a" {
		t.Fatalf("unexpected notification %+v", job.Notification)
	}
	if msg.Header.Get(nats.MsgIdHdr) != job.ID {
		t.Fatalf("expected msg id %q, got %q", job.ID, msg.Header.Get(nats.MsgIdHdr))
	}
	_ = msg.Ack()

	kv, err := js.KeyValue("alert_state")
	if err != nil {
		t.Fatalf("state bucket: %v", err)
	}
	testutil.Eventually(t, 5*time.Second, func() bool {
		keys, err := kv.Keys()
		return err == nil && len(keys) == 1
	})

	cancel()
	waitServiceStop(t, done)
}

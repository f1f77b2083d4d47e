package e2e

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServiceSingleModeHTTPOnly(t *testing.T) {
	port := freePort(t)
	service := newServiceFromConfig(t, e2eSingleConfig(port))
	cancel, done := runService(t, service)
	defer cancel()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitReady(t, port)

	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected health 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	now := time.Now().UTC()
	batch := "[" + resultJSON("a", "Alerting", now) + "," + resultJSON("b", "Normal", now) + "]"
	if code := post(t, baseURL+"/ingest", batch); code != http.StatusAccepted {
		t.Fatalf("expected ingest 202, got %d", code)
	}
	unknown := strings.Replace(resultJSON("a", "Alerting", now), "cpu_high", "missing", 1)
	if code := post(t, baseURL+"/ingest", unknown); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected unknown rule 422, got %d", code)
	}
	pending := resultJSON("a", "Pending", now)
	if code := post(t, baseURL+"/ingest", pending); code != http.StatusBadRequest {
		t.Fatalf("expected pending outcome 400, got %d", code)
	}

	body := get(t, baseURL+"/metrics")
	for _, want := range []string{
		`alertstate_transitions_total{from="None",to="Alerting"} 1`,
		`alertstate_instances 2`,
		`alertstate_notifications_total{state="Alerting",status="sent"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	cancel()
	waitServiceStop(t, done)
}

func post(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	_, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	return string(raw)
}

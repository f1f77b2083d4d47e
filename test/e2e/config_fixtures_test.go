package e2e

import (
	"fmt"
	"time"
)

const e2eRules = `
[rule.cpu_high]
title = "CPU high"
for_sec = 0
interval_sec = 10
exec_err_state = "error"
no_data_state = "nodata"

[rule.cpu_high.labels]
team = "infra"

[rule.cpu_high.annotations]
summary = "cpu above threshold"

[[rule.cpu_high.data]]
ref_id = "A"
datasource_uid = "prom"
`

// e2eSingleConfig renders a single-mode config listening on port.
func e2eSingleConfig(port int) string {
	return fmt.Sprintf(`
[service]
mode = "single"

[log.console]
enabled = true
level = "error"

[ingest.http]
enabled = true
listen = "127.0.0.1:%d"
`, port) + e2eRules
}

// e2eNATSConfig renders a nats-mode config with NATS ingest and notify queue enabled.
func e2eNATSConfig(port int, natsURL string) string {
	return fmt.Sprintf(`
[service]
mode = "nats"

[log.console]
enabled = true
level = "error"

[ingest.http]
enabled = true
listen = "127.0.0.1:%d"

[ingest.nats]
enabled = true
url = ["%s"]

[notify.queue]
enabled = true
allow_create_stream = true
`, port, natsURL) + e2eRules
}

// resultJSON renders one result in the ingest wire form.
func resultJSON(host, stateName string, at time.Time) string {
	return fmt.Sprintf(`{"rule_uid":"cpu_high","org_id":1,"labels":{"host":%q},"state":%q,"evaluated_at":%q,"evaluation_duration_ms":5}`,
		host, stateName, at.UTC().Format(time.RFC3339Nano))
}

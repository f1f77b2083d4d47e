package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"alertstate/internal/domain"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName        = "alertstate"
	defaultHTTPListen         = ":8080"
	defaultHealthPath         = "/healthz"
	defaultReadyPath          = "/readyz"
	defaultMetricsPath        = "/metrics"
	defaultIngestPath         = "/ingest"
	defaultMaxBodyBytes       = 2 << 20
	defaultNATSSubject        = "alertstate.results"
	defaultNATSIngestStream   = "ALERTSTATE_RESULTS"
	defaultNATSIngestConsumer = "alertstate-ingest"
	defaultNATSIngestGroup    = "alertstate-workers"
	defaultNATSIngestWorkers  = 1
	defaultNATSAckWaitSec     = 30
	defaultNATSNackDelayMS    = 1000
	defaultNATSMaxDeliver     = -1
	defaultNATSMaxAckPending  = 2048
	defaultNATSURL            = "nats://127.0.0.1:4222"
	defaultStateBucket        = "alert_state"
	defaultNotifySubject      = "alertstate.notifications"
	defaultNotifyStream       = "ALERTSTATE_NOTIFICATIONS"
	defaultNotifyDedupSec     = 120
	defaultGCIntervalSec      = 60
	defaultReloadSeconds      = 5
	defaultResendDelaySec     = 30
	defaultHistoryMultiplier  = 2
	defaultHistoryFloor       = 10
	defaultRetentionSec       = 900
	defaultRuleIntervalSec    = 60
	defaultRuleOrgID          = 1
	defaultLogFileMaxSizeMB   = 100
	defaultLogFileMaxBackups  = 5

	// ServiceModeNATS keeps NATS-backed state/ingest/notify settings.
	ServiceModeNATS = "nats"
	// ServiceModeSingle keeps single-instance mode without NATS dependencies.
	ServiceModeSingle = "single"
)

var (
	legacyRuleArrayPattern                = regexp.MustCompile(`(?m)^\s*\[\[\s*rule\s*\]\]`)
	unsupportedIngestNATSFixedKeysPattern = regexp.MustCompile(`(?mi)^\s*(?:subject|stream|consumer_name|deliver_group)\s*=`)
	unsupportedNotifyQueueURLPattern      = regexp.MustCompile(`(?si)\[\s*notify\.queue\s*\][^\[]*\burl\s*=`)
)

// Config holds service runtime settings and alert rules.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	State   StateConfig   `toml:"state"`
	Ingest  IngestConfig  `toml:"ingest"`
	Notify  NotifyConfig  `toml:"notify"`
	Rule    []RuleConfig  `toml:"rule"`
}

// rawConfig mirrors TOML model before runtime normalization.
// Params: decoded sections from one TOML source.
// Returns: raw rule map keyed by rule uid.
type rawConfig struct {
	Service ServiceConfig            `toml:"service"`
	Log     LogConfig                `toml:"log"`
	State   StateConfig              `toml:"state"`
	Ingest  IngestConfig             `toml:"ingest"`
	Notify  NotifyConfig             `toml:"notify"`
	Rule    map[string]rawRuleConfig `toml:"rule"`
}

// rawRuleConfig stores one rule body from `[rule.<uid>]` table.
// Params: rule fields except top-level key-derived uid.
// Returns: intermediate rule body used for normalization.
type rawRuleConfig struct {
	UID          string            `toml:"uid"`
	OrgID        int64             `toml:"org_id"`
	Title        string            `toml:"title"`
	ForSec       int64             `toml:"for_sec"`
	IntervalSec  int64             `toml:"interval_sec"`
	ExecErrState string            `toml:"exec_err_state"`
	NoDataState  string            `toml:"no_data_state"`
	Labels       map[string]string `toml:"labels"`
	Annotations  map[string]string `toml:"annotations"`
	Data         []RuleQuery       `toml:"data"`
	OutOfOrder   RuleOutOfOrder    `toml:"out_of_order"`
}

// ServiceConfig contains process-level settings.
// Params: name, runtime mode, garbage-collection cadence and reload settings.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name              string `toml:"name"`
	Mode              string `toml:"mode"`
	GCIntervalSec     int    `toml:"gc_interval_sec"`
	ReloadEnabled     bool   `toml:"reload_enabled"`
	ReloadIntervalSec int    `toml:"reload_interval_sec"`
}

// StateConfig tunes the instance state machine.
// Params: resend delay, history window constants and idle retention.
type StateConfig struct {
	ResendDelaySec    int   `toml:"resend_delay_sec"`
	HistoryMultiplier int64 `toml:"history_multiplier"`
	HistoryFloor      int64 `toml:"history_floor"`
	RetentionSec      int   `toml:"retention_sec"`
}

// ResendDelay returns the resend delay as a duration.
func (s StateConfig) ResendDelay() time.Duration {
	return time.Duration(s.ResendDelaySec) * time.Second
}

// Retention returns how long a quiet Normal instance is kept.
func (s StateConfig) Retention() time.Duration {
	return time.Duration(s.RetentionSec) * time.Second
}

// IngestConfig defines inbound result interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures HTTP result ingestion endpoint.
// Params: enable flag, listen/endpoints, and optional body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	IngestPath   string `toml:"ingest_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion.
// Params: connection + worker/ack/redelivery policy; stream routing keys are runtime-fixed.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"-"`
	Stream        string   `toml:"-"`
	ConsumerName  string   `toml:"-"`
	DeliverGroup  string   `toml:"-"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// NATSStateConfig contains fixed JetStream KV controls for the snapshot store.
// Params: URL list, bucket name and bucket bootstrap flag.
// Returns: NATS state backend options.
type NATSStateConfig struct {
	URL               []string `toml:"url"`
	Bucket            string   `toml:"bucket"`
	AllowCreateBucket bool     `toml:"allow_create_bucket"`
}

// DeriveStateNATSConfig builds fixed state-backend settings from runtime config.
// Params: full runtime configuration snapshot.
// Returns: non-user-overridable NATS state settings.
func DeriveStateNATSConfig(cfg Config) NATSStateConfig {
	urls := normalizeNATSURLs(cfg.Ingest.NATS.URL)
	if len(urls) == 0 {
		urls = []string{defaultNATSURL}
	}
	return NATSStateConfig{
		URL:               urls,
		Bucket:            defaultStateBucket,
		AllowCreateBucket: true,
	}
}

// NotifyConfig defines where "needs sending" announcements go.
type NotifyConfig struct {
	Queue NotifyQueue `toml:"queue"`
}

// NotifyQueue defines the JetStream stream receiving notification jobs.
// Params: enable flag, dedup window and stream bootstrap flag; URL/subject/stream are derived.
// Returns: notify producer controls.
type NotifyQueue struct {
	Enabled           bool     `toml:"enabled"`
	URL               []string `toml:"-"`
	Subject           string   `toml:"-"`
	Stream            string   `toml:"-"`
	DuplicateWindowS  int      `toml:"duplicate_window_sec"`
	AllowCreateStream bool     `toml:"allow_create_stream"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, path and file rotation limits.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled    bool   `toml:"enabled"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// RuleConfig describes one alert rule as seen by the state machine.
// Params: identity, hysteresis, evaluation interval, error/no-data policies and static metadata.
// Returns: runtime rule definition.
type RuleConfig struct {
	UID          string
	OrgID        int64
	Title        string
	ForSec       int64
	IntervalSec  int64
	ExecErrState string
	NoDataState  string
	Labels       map[string]string
	Annotations  map[string]string
	Data         []RuleQuery
	OutOfOrder   RuleOutOfOrder
}

// RuleOutOfOrder defines safeguards for delayed/future results.
// Params: max late age and max future skew of evaluated_at in milliseconds; 0 disables a bound.
// Returns: out-of-order controls.
type RuleOutOfOrder struct {
	MaxLateMS       int64 `toml:"max_late_ms"`
	MaxFutureSkewMS int64 `toml:"max_future_skew_ms"`
}

// RuleQuery describes one query of a rule, used to enrich error states.
type RuleQuery struct {
	RefID         string `toml:"ref_id"`
	DatasourceUID string `toml:"datasource_uid"`
}

// AlertRule converts config rule into the state machine rule.
// Params: normalized rule config.
// Returns: detached domain rule.
func (r RuleConfig) AlertRule() domain.AlertRule {
	rule := domain.AlertRule{
		UID:             r.UID,
		OrgID:           r.OrgID,
		Title:           r.Title,
		For:             time.Duration(r.ForSec) * time.Second,
		IntervalSeconds: r.IntervalSec,
		ExecErrState:    domain.ExecErrState(NormalizeExecErrState(r.ExecErrState)),
		NoDataState:     domain.NoDataState(NormalizeNoDataState(r.NoDataState)),
		Labels:          domain.Labels(r.Labels).Copy(),
		Annotations:     domain.Labels(r.Annotations).Copy(),
	}
	if len(r.Data) > 0 {
		rule.Data = make([]domain.AlertQuery, 0, len(r.Data))
		for _, query := range r.Data {
			rule.Data = append(rule.Data, domain.AlertQuery{RefID: query.RefID, DatasourceUID: query.DatasourceUID})
		}
	}
	return rule
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configMergeHints carries explicit bool-presence markers used for directory overlays.
type configMergeHints struct {
	Notify struct {
		Queue struct {
			Enabled           *bool `toml:"enabled"`
			AllowCreateStream *bool `toml:"allow_create_stream"`
		} `toml:"queue"`
	} `toml:"notify"`
}

// normalizeRawConfig converts raw TOML model to runtime config.
// Params: decoded raw config from file fragment.
// Returns: normalized config snapshot.
func normalizeRawConfig(raw rawConfig) (Config, error) {
	cfg := Config{
		Service: raw.Service,
		Log:     raw.Log,
		State:   raw.State,
		Ingest:  raw.Ingest,
		Notify:  raw.Notify,
	}
	if len(raw.Rule) == 0 {
		return cfg, nil
	}

	uids := make([]string, 0, len(raw.Rule))
	for uid := range raw.Rule {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	cfg.Rule = make([]RuleConfig, 0, len(uids))
	for _, uid := range uids {
		body := raw.Rule[uid]
		if strings.TrimSpace(body.UID) != "" {
			return Config{}, fmt.Errorf("rule.%s.uid is not supported; use [rule.%s] key as rule uid", uid, uid)
		}
		cfg.Rule = append(cfg.Rule, RuleConfig{
			UID:          uid,
			OrgID:        body.OrgID,
			Title:        body.Title,
			ForSec:       body.ForSec,
			IntervalSec:  body.IntervalSec,
			ExecErrState: body.ExecErrState,
			NoDataState:  body.NoDataState,
			Labels:       body.Labels,
			Annotations:  body.Annotations,
			Data:         body.Data,
			OutOfOrder:   body.OutOfOrder,
		})
	}

	return cfg, nil
}

// rejectUnsupportedSyntax checks forbidden TOML syntax and returns explicit error.
// Params: raw TOML file body.
// Returns: error when unsupported syntax is detected.
func rejectUnsupportedSyntax(body []byte) error {
	if legacyRuleArrayPattern.Match(body) {
		return errors.New("[[rule]] arrays are not supported; use [rule.<rule_uid>] tables")
	}
	if unsupportedIngestNATSFixedKeysPattern.Match(body) {
		return errors.New("ingest.nats.subject/stream/consumer_name/deliver_group are fixed in runtime and must not be configured")
	}
	if unsupportedNotifyQueueURLPattern.Match(body) {
		return errors.New("notify.queue.url is not supported; notify queue NATS URL is derived from ingest.nats.url")
	}
	return nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	cfg, _, err := loadFileForMerge(path)
	return cfg, err
}

// loadFileForMerge reads one TOML file with merge hints.
// Params: file path to config fragment.
// Returns: decoded config plus explicit-bool hints for overlay merge.
func loadFileForMerge(path string) (Config, configMergeHints, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := rejectUnsupportedSyntax(body); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	cfg, err := normalizeRawConfig(raw)
	if err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var hints configMergeHints
	if err := toml.Unmarshal(body, &hints); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode merge hints %q: %w", path, err)
	}
	return cfg, hints, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, hints, err := loadFileForMerge(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment, hints)
	}
	return merged, nil
}

// mergeConfig overlays source onto destination.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config, hints configMergeHints) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.State != (StateConfig{}) {
		dst.State = src.State
	}
	if hasIngestConfig(src.Ingest) {
		dst.Ingest = src.Ingest
	}
	queue := hints.Notify.Queue
	if queue.Enabled != nil {
		dst.Notify.Queue.Enabled = *queue.Enabled
	}
	if queue.AllowCreateStream != nil {
		dst.Notify.Queue.AllowCreateStream = *queue.AllowCreateStream
	}
	if src.Notify.Queue.DuplicateWindowS != 0 {
		dst.Notify.Queue.DuplicateWindowS = src.Notify.Queue.DuplicateWindowS
	}
	if len(src.Rule) > 0 {
		dst.Rule = append(dst.Rule, src.Rule...)
	}
}

// applyDefaults fills optional fields with runtime defaults.
// Params: cfg pointer to decoded snapshot.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.GCIntervalSec <= 0 {
		cfg.Service.GCIntervalSec = defaultGCIntervalSec
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSeconds
	}

	if cfg.State.ResendDelaySec == 0 {
		cfg.State.ResendDelaySec = defaultResendDelaySec
	}
	if cfg.State.HistoryMultiplier == 0 {
		cfg.State.HistoryMultiplier = defaultHistoryMultiplier
	}
	if cfg.State.HistoryFloor == 0 {
		cfg.State.HistoryFloor = defaultHistoryFloor
	}
	if cfg.State.RetentionSec == 0 {
		cfg.State.RetentionSec = defaultRetentionSec
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if cfg.Log.File.MaxSizeMB <= 0 {
		cfg.Log.File.MaxSizeMB = defaultLogFileMaxSizeMB
	}
	if cfg.Log.File.MaxBackups == 0 {
		cfg.Log.File.MaxBackups = defaultLogFileMaxBackups
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.HealthPath) == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.ReadyPath) == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.MetricsPath) == "" {
		cfg.Ingest.HTTP.MetricsPath = defaultMetricsPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.IngestPath) == "" {
		cfg.Ingest.HTTP.IngestPath = defaultIngestPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	if cfg.Service.Mode == ServiceModeSingle {
		// Single mode always disables NATS-dependent paths regardless of user flags.
		cfg.Ingest.NATS.Enabled = false
		cfg.Notify.Queue.Enabled = false
		cfg.Notify.Queue.URL = nil
	} else {
		cfg.Ingest.NATS.URL = normalizeNATSURLs(cfg.Ingest.NATS.URL)
		if len(cfg.Ingest.NATS.URL) == 0 {
			cfg.Ingest.NATS.URL = []string{defaultNATSURL}
		}
		cfg.Ingest.NATS.Subject = defaultNATSSubject
		cfg.Ingest.NATS.Stream = defaultNATSIngestStream
		cfg.Ingest.NATS.ConsumerName = defaultNATSIngestConsumer
		cfg.Ingest.NATS.DeliverGroup = defaultNATSIngestGroup
		if cfg.Ingest.NATS.Workers == 0 {
			cfg.Ingest.NATS.Workers = defaultNATSIngestWorkers
		}
		if cfg.Ingest.NATS.AckWaitSec <= 0 {
			cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
		}
		if cfg.Ingest.NATS.NackDelayMS <= 0 {
			cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
		}
		if cfg.Ingest.NATS.MaxDeliver == 0 {
			cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
		}
		if cfg.Ingest.NATS.MaxAckPending <= 0 {
			cfg.Ingest.NATS.MaxAckPending = defaultNATSMaxAckPending
		}
		if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
			cfg.Ingest.HTTP.Enabled = true
		}

		// Queue uses the same NATS URL list as ingest/state in multi-instance mode.
		cfg.Notify.Queue.URL = append([]string(nil), cfg.Ingest.NATS.URL...)
		cfg.Notify.Queue.Subject = defaultNotifySubject
		cfg.Notify.Queue.Stream = defaultNotifyStream
		if cfg.Notify.Queue.DuplicateWindowS <= 0 {
			cfg.Notify.Queue.DuplicateWindowS = defaultNotifyDedupSec
		}
	}

	for i := range cfg.Rule {
		rule := &cfg.Rule[i]
		if rule.OrgID == 0 {
			rule.OrgID = defaultRuleOrgID
		}
		if strings.TrimSpace(rule.Title) == "" {
			rule.Title = rule.UID
		}
		if rule.IntervalSec == 0 {
			rule.IntervalSec = defaultRuleIntervalSec
		}
		if strings.TrimSpace(rule.ExecErrState) == "" {
			rule.ExecErrState = string(domain.AlertingErrState)
		}
		if strings.TrimSpace(rule.NoDataState) == "" {
			rule.NoDataState = string(domain.NoDataNoData)
		}
		rule.ExecErrState = NormalizeExecErrState(rule.ExecErrState)
		rule.NoDataState = NormalizeNoDataState(rule.NoDataState)
	}
}

// validateConfig checks required fields and cross-field constraints.
// Params: cfg snapshot to validate.
// Returns: first validation error with a path-qualified message.
func validateConfig(cfg Config) error {
	if len(cfg.Rule) == 0 {
		return errors.New("at least one rule is required")
	}
	mode := NormalizeServiceMode(cfg.Service.Mode)
	if !IsSupportedServiceMode(mode) {
		return fmt.Errorf("service.mode has unsupported value %q", cfg.Service.Mode)
	}
	if cfg.Service.GCIntervalSec <= 0 {
		return errors.New("service.gc_interval_sec must be >0")
	}
	if cfg.State.ResendDelaySec <= 0 {
		return errors.New("state.resend_delay_sec must be >0")
	}
	if cfg.State.HistoryMultiplier <= 0 {
		return errors.New("state.history_multiplier must be >0")
	}
	if cfg.State.HistoryFloor <= 0 {
		return errors.New("state.history_floor must be >0")
	}
	if cfg.State.RetentionSec < 0 {
		return errors.New("state.retention_sec must be >=0")
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		return errors.New("ingest.http.listen is required")
	}
	paths := map[string]string{
		"ingest.http.health_path":  cfg.Ingest.HTTP.HealthPath,
		"ingest.http.ready_path":   cfg.Ingest.HTTP.ReadyPath,
		"ingest.http.metrics_path": cfg.Ingest.HTTP.MetricsPath,
		"ingest.http.ingest_path":  cfg.Ingest.HTTP.IngestPath,
	}
	seenPaths := make(map[string]string, len(paths))
	for _, name := range []string{"ingest.http.health_path", "ingest.http.ready_path", "ingest.http.metrics_path", "ingest.http.ingest_path"} {
		path := strings.TrimSpace(paths[name])
		if path == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
		if other, ok := seenPaths[path]; ok {
			return fmt.Errorf("%s duplicates %s", name, other)
		}
		seenPaths[path] = name
	}
	if mode == ServiceModeSingle && !cfg.Ingest.HTTP.Enabled {
		return errors.New("ingest.http.enabled must be true when service.mode=single")
	}
	if mode == ServiceModeNATS {
		if len(cfg.Ingest.NATS.URL) == 0 {
			return errors.New("ingest.nats.url is required")
		}
		for i, url := range cfg.Ingest.NATS.URL {
			if strings.TrimSpace(url) == "" {
				return fmt.Errorf("ingest.nats.url[%d] is empty", i)
			}
		}
		if cfg.Ingest.NATS.Enabled {
			if cfg.Ingest.NATS.Workers <= 0 {
				return errors.New("ingest.nats.workers must be >0 when ingest.nats.enabled=true")
			}
			if cfg.Ingest.NATS.MaxDeliver == 0 || cfg.Ingest.NATS.MaxDeliver < -1 {
				return errors.New("ingest.nats.max_deliver must be -1 or >0")
			}
		}
	}
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Rule))
	for _, rule := range cfg.Rule {
		id := fmt.Sprintf("%d/%s", rule.OrgID, rule.UID)
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate rule uid %q in org %d", rule.UID, rule.OrgID)
		}
		seen[id] = struct{}{}
		if err := validateRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// validateRule validates one rule body.
// Params: normalized rule config.
// Returns: path-qualified validation error.
func validateRule(rule RuleConfig) error {
	prefix := "rule." + rule.UID
	if strings.TrimSpace(rule.UID) == "" {
		return errors.New("rule uid is required")
	}
	if rule.OrgID <= 0 {
		return fmt.Errorf("%s.org_id must be >0", prefix)
	}
	if rule.ForSec < 0 {
		return fmt.Errorf("%s.for_sec must be >=0", prefix)
	}
	if rule.IntervalSec <= 0 {
		return fmt.Errorf("%s.interval_sec must be >0", prefix)
	}
	switch domain.ExecErrState(rule.ExecErrState) {
	case domain.AlertingErrState, domain.ErrorErrState:
	default:
		return fmt.Errorf("%s.exec_err_state has unsupported value %q", prefix, rule.ExecErrState)
	}
	switch domain.NoDataState(rule.NoDataState) {
	case domain.NoDataAlerting, domain.NoDataNoData, domain.NoDataOK:
	default:
		return fmt.Errorf("%s.no_data_state has unsupported value %q", prefix, rule.NoDataState)
	}
	if rule.OutOfOrder.MaxLateMS < 0 {
		return fmt.Errorf("%s.out_of_order.max_late_ms must be >=0", prefix)
	}
	if rule.OutOfOrder.MaxFutureSkewMS < 0 {
		return fmt.Errorf("%s.out_of_order.max_future_skew_ms must be >=0", prefix)
	}
	for name := range rule.Labels {
		if name == domain.AlertNameLabel || name == domain.RuleUIDLabel {
			return fmt.Errorf("%s.labels.%s is reserved", prefix, name)
		}
	}
	refs := make(map[string]struct{}, len(rule.Data))
	for i, query := range rule.Data {
		refID := strings.TrimSpace(query.RefID)
		if refID == "" {
			return fmt.Errorf("%s.data[%d].ref_id is required", prefix, i)
		}
		if _, ok := refs[refID]; ok {
			return fmt.Errorf("%s.data[%d].ref_id %q is duplicated", prefix, i, refID)
		}
		refs[refID] = struct{}{}
	}
	return nil
}

// hasIngestConfig reports whether fragment declares any ingest field.
func hasIngestConfig(cfg IngestConfig) bool {
	return cfg.HTTP != (HTTPIngestConfig{}) ||
		cfg.NATS.Enabled ||
		len(cfg.NATS.URL) > 0 ||
		cfg.NATS.Workers != 0 ||
		cfg.NATS.AckWaitSec != 0 ||
		cfg.NATS.NackDelayMS != 0 ||
		cfg.NATS.MaxDeliver != 0 ||
		cfg.NATS.MaxAckPending != 0
}

// normalizeNATSURLs trims spaces around each configured NATS URL.
// Params: raw URL list from config.
// Returns: normalized URL list preserving element count for validation.
func normalizeNATSURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = strings.TrimSpace(urls[i])
	}
	return out
}

// NormalizeServiceMode canonicalizes service mode and applies default.
// Params: raw mode value from config.
// Returns: normalized mode (`nats` by default).
func NormalizeServiceMode(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ServiceModeNATS
	}
	return normalized
}

// IsSupportedServiceMode reports whether mode value is supported.
// Params: normalized mode value.
// Returns: true for known modes.
func IsSupportedServiceMode(mode string) bool {
	switch NormalizeServiceMode(mode) {
	case ServiceModeNATS, ServiceModeSingle:
		return true
	default:
		return false
	}
}

// NormalizeExecErrState maps case-insensitive input onto canonical policy names.
// Unknown values are returned trimmed so validation can report them.
func NormalizeExecErrState(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "alerting":
		return string(domain.AlertingErrState)
	case "error":
		return string(domain.ErrorErrState)
	default:
		return trimmed
	}
}

// NormalizeNoDataState maps case-insensitive input onto canonical policy names.
func NormalizeNoDataState(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "alerting":
		return string(domain.NoDataAlerting)
	case "nodata", "no_data":
		return string(domain.NoDataNoData)
	case "ok", "normal":
		return string(domain.NoDataOK)
	default:
		return trimmed
	}
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}
	if sink.MaxBackups < 0 {
		return fmt.Errorf("%s.max_backups must be >=0", name)
	}
	if sink.MaxAgeDays < 0 {
		return fmt.Errorf("%s.max_age_days must be >=0", name)
	}

	return nil
}

// Package config loads the auditor configuration. Defaults are compiled in, an
// optional YAML file overrides them, and environment variables override both.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full service configuration.
type Config struct {
	Server     Server
	Redis      RedisConfig
	Shield     ShieldConfig
	Enforcer   EnforcerConfig
	Pipeline   PipelineConfig
	Reasoner   ReasonerConfig
	Embeddings EmbeddingsConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	SMTP       SMTPConfig
	Tracing    TracingConfig
	Log        LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	WebhookSecret string
	MaxBodyBytes  int64
}

// RedisConfig describes the store topology. RateLimitURL is optional; when it is
// empty rate windows live in the shared store next to bans and strikes.
type RedisConfig struct {
	Backend      string // "redis" or "memory"
	URL          string
	RateLimitURL string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type ShieldConfig struct {
	RateLimit     int
	RateWindow    time.Duration
	ProbeInterval time.Duration
}

type EnforcerConfig struct {
	StrikeTTL       time.Duration
	StandardBanTTL  time.Duration
	ExtendedBanTTL  time.Duration
	ExtendedStrikes int
}

type PipelineConfig struct {
	Workers             int
	QueueSize           int
	TriageRiskThreshold float64
	EscalationThreshold int
	PolicyMatchCount    int
	PolicyMatchScore    float64
	DedupeRedeliveries  bool
	DedupeTTL           time.Duration
}

type ReasonerConfig struct {
	BaseURL     string
	APIKey      string
	JuniorModel string
	SeniorModel string
	Timeout     time.Duration
}

type EmbeddingsConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// DatabaseConfig points at the Postgres instance holding policy documents and
// the agent trace table. An empty URL selects the in-memory policy store, seeded
// from PolicyFile.
type DatabaseConfig struct {
	URL         string
	TraceTable  string
	PolicyTable string
	PolicyFile  string
}

type KafkaConfig struct {
	Brokers    []string
	TraceTopic string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SamplingRate float64
	Insecure     bool
}

type LogConfig struct {
	Level  string
	Format string
}

// Default values. The enforcement numbers are the contract shared with the
// upstream detector.
const (
	DefaultAddr                = ":8000"
	DefaultMaxBodyBytes        = 1 << 20
	DefaultRateLimit           = 5
	DefaultRateWindow          = 60 * time.Second
	DefaultProbeInterval       = 5 * time.Second
	DefaultStrikeTTL           = 7 * 24 * time.Hour
	DefaultStandardBanTTL      = time.Hour
	DefaultExtendedBanTTL      = 24 * time.Hour
	DefaultExtendedStrikes     = 3
	DefaultWorkers             = 8
	DefaultQueueSize           = 256
	DefaultTriageRiskThreshold = 0.5
	DefaultEscalation          = 90
	DefaultPolicyMatchCount    = 1
	DefaultPolicyMatchScore    = 0.3
	DefaultDedupeTTL           = 24 * time.Hour
	DefaultReasonerURL         = "https://api.groq.com/openai/v1"
	DefaultJuniorModel         = "llama-3.1-8b-instant"
	DefaultSeniorModel         = "llama-3.3-70b-versatile"
	DefaultReasonerTimeout     = 30 * time.Second
	DefaultEmbeddingModel      = "all-MiniLM-L6-v2"
	DefaultTraceTable          = "agent_traces"
	DefaultPolicyTable         = "documents"
	DefaultPolicyFile          = "configs/policies.yaml"
	DefaultTraceTopic          = "auditor.traces"
	DefaultSMTPHost            = "smtp.gmail.com"
	DefaultSMTPPort            = 587
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
)

var (
	ErrMissingRedisURL       = errors.New("REDIS_URL is required when AUDITOR_STORE=redis")
	ErrInvalidStoreBackend   = errors.New("AUDITOR_STORE must be redis or memory")
	ErrInvalidRateLimit      = errors.New("AUDITOR_RATE_LIMIT must be positive")
	ErrInvalidRateWindow     = errors.New("AUDITOR_RATE_WINDOW must be positive")
	ErrBanTiersOutOfOrder    = errors.New("extended ban TTL must not be shorter than the standard ban TTL")
	ErrInvalidExtendedStrike = errors.New("AUDITOR_EXTENDED_STRIKES must be at least 1")
	ErrInvalidEscalation     = errors.New("AUDITOR_ESCALATION_THRESHOLD must be within 0..100")
	ErrInvalidWorkers        = errors.New("AUDITOR_WORKERS and AUDITOR_QUEUE_SIZE must be positive")
	ErrInvalidSamplingRate   = errors.New("OTEL_SAMPLING_RATE must be within 0..1")
)

// Load reads an optional YAML file and then the environment. It returns the config
// together with every validation problem found, so callers can report all of them.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var errs []error
	intVal := func(env, key string, def int) int {
		v, err := envInt(env, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	floatVal := func(env, key string, def float64) float64 {
		v, err := envFloat(env, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durVal := func(env, key string, def time.Duration) time.Duration {
		v, err := envDuration(env, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: Server{
			Addr:          envString([]string{"AUDITOR_ADDR"}, k, "server.addr", DefaultAddr),
			WebhookSecret: envString([]string{"SUPABASE_WEBHOOK_SECRET", "AUDITOR_WEBHOOK_SECRET"}, k, "server.webhook_secret", ""),
			MaxBodyBytes:  int64(intVal("AUDITOR_MAX_BODY_BYTES", "server.max_body_bytes", DefaultMaxBodyBytes)),
		},
		Redis: RedisConfig{
			Backend:      envString([]string{"AUDITOR_STORE"}, k, "redis.backend", "redis"),
			URL:          envString([]string{"REDIS_URL"}, k, "redis.url", ""),
			RateLimitURL: envString([]string{"RATE_LIMIT_REDIS_URL"}, k, "redis.rate_limit_url", ""),
			PoolSize:     intVal("REDIS_POOL_SIZE", "redis.pool_size", 20),
			MinIdleConns: intVal("REDIS_MIN_IDLE_CONNS", "redis.min_idle_conns", 2),
			DialTimeout:  durVal("REDIS_DIAL_TIMEOUT", "redis.dial_timeout", 2*time.Second),
			ReadTimeout:  durVal("REDIS_READ_TIMEOUT", "redis.read_timeout", time.Second),
			WriteTimeout: durVal("REDIS_WRITE_TIMEOUT", "redis.write_timeout", time.Second),
		},
		Shield: ShieldConfig{
			RateLimit:     intVal("AUDITOR_RATE_LIMIT", "shield.rate_limit", DefaultRateLimit),
			RateWindow:    durVal("AUDITOR_RATE_WINDOW", "shield.rate_window", DefaultRateWindow),
			ProbeInterval: durVal("AUDITOR_SHIELD_PROBE_INTERVAL", "shield.probe_interval", DefaultProbeInterval),
		},
		Enforcer: EnforcerConfig{
			StrikeTTL:       durVal("AUDITOR_STRIKE_TTL", "enforcer.strike_ttl", DefaultStrikeTTL),
			StandardBanTTL:  durVal("AUDITOR_STANDARD_BAN_TTL", "enforcer.standard_ban_ttl", DefaultStandardBanTTL),
			ExtendedBanTTL:  durVal("AUDITOR_EXTENDED_BAN_TTL", "enforcer.extended_ban_ttl", DefaultExtendedBanTTL),
			ExtendedStrikes: intVal("AUDITOR_EXTENDED_STRIKES", "enforcer.extended_strikes", DefaultExtendedStrikes),
		},
		Pipeline: PipelineConfig{
			Workers:             intVal("AUDITOR_WORKERS", "pipeline.workers", DefaultWorkers),
			QueueSize:           intVal("AUDITOR_QUEUE_SIZE", "pipeline.queue_size", DefaultQueueSize),
			TriageRiskThreshold: floatVal("AUDITOR_TRIAGE_RISK_THRESHOLD", "pipeline.triage_risk_threshold", DefaultTriageRiskThreshold),
			EscalationThreshold: intVal("AUDITOR_ESCALATION_THRESHOLD", "pipeline.escalation_threshold", DefaultEscalation),
			PolicyMatchCount:    intVal("AUDITOR_POLICY_MATCH_COUNT", "pipeline.policy_match_count", DefaultPolicyMatchCount),
			PolicyMatchScore:    floatVal("AUDITOR_POLICY_MATCH_SCORE", "pipeline.policy_match_score", DefaultPolicyMatchScore),
			DedupeRedeliveries:  envBool("AUDITOR_DEDUPE_REDELIVERIES", k, "pipeline.dedupe_redeliveries", false),
			DedupeTTL:           durVal("AUDITOR_DEDUPE_TTL", "pipeline.dedupe_ttl", DefaultDedupeTTL),
		},
		Reasoner: ReasonerConfig{
			BaseURL:     envString([]string{"REASONER_BASE_URL"}, k, "reasoner.base_url", DefaultReasonerURL),
			APIKey:      envString([]string{"GROQ_API_KEY", "REASONER_API_KEY"}, k, "reasoner.api_key", ""),
			JuniorModel: envString([]string{"REASONER_JUNIOR_MODEL"}, k, "reasoner.junior_model", DefaultJuniorModel),
			SeniorModel: envString([]string{"REASONER_SENIOR_MODEL"}, k, "reasoner.senior_model", DefaultSeniorModel),
			Timeout:     durVal("REASONER_TIMEOUT", "reasoner.timeout", DefaultReasonerTimeout),
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: envString([]string{"EMBEDDINGS_BASE_URL"}, k, "embeddings.base_url", ""),
			APIKey:  envString([]string{"EMBEDDINGS_API_KEY"}, k, "embeddings.api_key", ""),
			Model:   envString([]string{"EMBEDDINGS_MODEL"}, k, "embeddings.model", DefaultEmbeddingModel),
		},
		Database: DatabaseConfig{
			URL:         envString([]string{"DATABASE_URL"}, k, "database.url", ""),
			TraceTable:  envString([]string{"AUDITOR_TRACE_TABLE"}, k, "database.trace_table", DefaultTraceTable),
			PolicyTable: envString([]string{"AUDITOR_POLICY_TABLE"}, k, "database.policy_table", DefaultPolicyTable),
			PolicyFile:  envString([]string{"AUDITOR_POLICY_FILE"}, k, "database.policy_file", DefaultPolicyFile),
		},
		Kafka: KafkaConfig{
			Brokers:    envList("KAFKA_BROKERS", k, "kafka.brokers"),
			TraceTopic: envString([]string{"KAFKA_TRACE_TOPIC"}, k, "kafka.trace_topic", DefaultTraceTopic),
		},
		SMTP: SMTPConfig{
			Host:     envString([]string{"SMTP_HOST"}, k, "smtp.host", DefaultSMTPHost),
			Port:     intVal("SMTP_PORT", "smtp.port", DefaultSMTPPort),
			User:     envString([]string{"SMTP_USER"}, k, "smtp.user", ""),
			Password: envString([]string{"SMTP_PASS"}, k, "smtp.password", ""),
			From:     envString([]string{"SMTP_FROM"}, k, "smtp.from", ""),
		},
		Tracing: TracingConfig{
			Enabled:      envBool("OTEL_ENABLED", k, "tracing.enabled", false),
			OTLPEndpoint: envString([]string{"OTEL_EXPORTER_OTLP_ENDPOINT"}, k, "tracing.otlp_endpoint", "localhost:4318"),
			SamplingRate: floatVal("OTEL_SAMPLING_RATE", "tracing.sampling_rate", 0.1),
			Insecure:     envBool("OTEL_INSECURE", k, "tracing.insecure", true),
		},
		Log: LogConfig{
			Level:  envString([]string{"LOG_LEVEL"}, k, "log.level", DefaultLogLevel),
			Format: envString([]string{"LOG_FORMAT"}, k, "log.format", DefaultLogFormat),
		},
	}

	errs = append(errs, cfg.Validate()...)
	return cfg, errs
}

// Validate checks cross-field invariants. A missing webhook secret is not an
// error here: the webhook answers 500 for every request until it is configured.
func (c *Config) Validate() []error {
	var errs []error
	switch c.Redis.Backend {
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, ErrMissingRedisURL)
		}
	case "memory":
	default:
		errs = append(errs, ErrInvalidStoreBackend)
	}
	if c.Shield.RateLimit <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.Shield.RateWindow <= 0 {
		errs = append(errs, ErrInvalidRateWindow)
	}
	if c.Enforcer.ExtendedBanTTL < c.Enforcer.StandardBanTTL {
		errs = append(errs, ErrBanTiersOutOfOrder)
	}
	if c.Enforcer.ExtendedStrikes < 1 {
		errs = append(errs, ErrInvalidExtendedStrike)
	}
	if c.Pipeline.EscalationThreshold < 0 || c.Pipeline.EscalationThreshold > 100 {
		errs = append(errs, ErrInvalidEscalation)
	}
	if c.Pipeline.Workers <= 0 || c.Pipeline.QueueSize <= 0 {
		errs = append(errs, ErrInvalidWorkers)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	return errs
}

// SMTPEnabled reports whether pardon notices can be mailed.
func (c SMTPConfig) SMTPEnabled() bool {
	return c.User != "" && c.Password != ""
}

func envString(envKeys []string, k *koanf.Koanf, key, def string) string {
	for _, env := range envKeys {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if v := k.String(key); v != "" {
		return v
	}
	return def
}

func envInt(env string, k *koanf.Koanf, key string, def int) (int, error) {
	if v := os.Getenv(env); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def, fmt.Errorf("%s must be an integer: %w", env, err)
		}
		return n, nil
	}
	if k.Exists(key) {
		return k.Int(key), nil
	}
	return def, nil
}

func envFloat(env string, k *koanf.Koanf, key string, def float64) (float64, error) {
	if v := os.Getenv(env); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def, fmt.Errorf("%s must be a number: %w", env, err)
		}
		return f, nil
	}
	if k.Exists(key) {
		return k.Float64(key), nil
	}
	return def, nil
}

// envDuration accepts Go durations ("90s") and bare integers meaning seconds.
func envDuration(env string, k *koanf.Koanf, key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(env)
	if raw == "" && k.Exists(key) {
		raw = k.String(key)
	}
	if raw == "" {
		return def, nil
	}
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s must be a duration: %w", env, err)
	}
	return d, nil
}

func envBool(env string, k *koanf.Koanf, key string, def bool) bool {
	if v := os.Getenv(env); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(key) {
		return k.Bool(key)
	}
	return def
}

func envList(env string, k *koanf.Koanf, key string) []string {
	if v := os.Getenv(env); v != "" {
		return splitList(v)
	}
	return k.Strings(key)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

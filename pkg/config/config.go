package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// ErrMissingStorage is returned when no storage endpoint is configured.
var ErrMissingStorage = errors.New("DATABASE_URL is required")

const maxConfigFileSize = 1024 * 1024

// Mailbox providers.
const (
	ProviderGmail   = "gmail"
	ProviderIMAP    = "imap"
	ProviderOutlook = "outlook"
)

// Mailbox describes one polled inbox and the credentials used to reach it.
// Credential fields hold references understood by pkg/credential.
type Mailbox struct {
	Address      string `koanf:"address" json:"address"`
	Provider     string `koanf:"provider" json:"provider"`
	Query        string `koanf:"query" json:"query,omitempty"`
	RefreshToken string `koanf:"refresh_token" json:"-"`
	IMAPHost     string `koanf:"imap_host" json:"imapHost,omitempty"`
	IMAPPort     int    `koanf:"imap_port" json:"imapPort,omitempty"`
	IMAPUsername string `koanf:"imap_username" json:"imapUsername,omitempty"`
	IMAPPassword string `koanf:"imap_password" json:"-"`
	AccessToken  string `koanf:"access_token" json:"-"`
}

type Config struct {
	SOPPageID    string `koanf:"sop_page_id"`
	SOPSource    string `koanf:"sop_source"`
	NotionAPIKey string `koanf:"notion_api_key"`
	SOPCacheFile string `koanf:"sop_cache_file"`

	Mailboxes       []Mailbox `koanf:"mailboxes"`
	TriageMailboxes string    `koanf:"triage_mailboxes"`
	PollQuery       string    `koanf:"poll_query"`
	OverlapMinutes  int       `koanf:"overlap_minutes"`
	MaxAgeHours     int       `koanf:"max_age_hours"`
	MaxResults      int       `koanf:"max_results"`

	DatabaseDriver string `koanf:"database_driver"`
	DatabaseURL    string `koanf:"database_url"`

	AIProvider         string `koanf:"ai_provider"`
	GeminiAPIKey       string `koanf:"gemini_api_key"`
	GeminiModel        string `koanf:"gemini_model"`
	OllamaBaseURL      string `koanf:"ollama_base_url"`
	OllamaModel        string `koanf:"ollama_model"`
	ModelRatePerMinute int    `koanf:"model_rate_per_minute"`

	GoogleClientID     string `koanf:"google_client_id"`
	GoogleClientSecret string `koanf:"google_client_secret"`
	DraftSignature     string `koanf:"draft_signature"`
	RoutingLabels      bool   `koanf:"routing_labels"`

	LookbackDays   int  `koanf:"lookback_days"`
	StaleHours     int  `koanf:"stale_hours"`
	NotifyMinCount int  `koanf:"notify_min_count"`
	NotifyAlways   bool `koanf:"notify_always"`

	ChatWebhookURL    string `koanf:"chat_webhook_url"`
	NATSURL           string `koanf:"nats_url"`
	PubSubProjectID   string `koanf:"pubsub_project_id"`
	PubSubTopic       string `koanf:"pubsub_topic"`
	GoogleCredentials string `koanf:"google_credentials"`
	FCMCredentials    string `koanf:"fcm_credentials"`
	FCMTopic          string `koanf:"fcm_topic"`
	PushgatewayURL    string `koanf:"pushgateway_url"`

	ApprovalSigningSecret string `koanf:"approval_signing_secret"`
	HTTPAddr              string `koanf:"http_addr"`
	OutputDir             string `koanf:"output_dir"`
	LogLevel              string `koanf:"log_level"`
	LogFormat             string `koanf:"log_format"`
}

// Load reads .env (if present), then the optional YAML file at path, then the
// process environment. Later sources win. Defaults fill whatever is left empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("TRIAGE_CONFIG")
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// SOP_PAGE_ID -> sop_page_id. Keys stay flat so env names map 1:1.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(f)
}

func (c *Config) applyDefaults() {
	setDefault(&c.SOPSource, "notion")
	setDefault(&c.SOPCacheFile, "var/sop_cache.json")
	setDefault(&c.PollQuery, "in:inbox")
	setDefaultInt(&c.OverlapMinutes, 120)
	setDefaultInt(&c.MaxAgeHours, 72)
	setDefaultInt(&c.MaxResults, 50)
	setDefault(&c.DatabaseDriver, "postgres")
	setDefault(&c.AIProvider, "auto")
	setDefault(&c.GeminiModel, "gemini-2.5-flash")
	setDefaultInt(&c.ModelRatePerMinute, 30)
	setDefault(&c.DraftSignature, "Best regards")
	setDefaultInt(&c.LookbackDays, 7)
	setDefaultInt(&c.StaleHours, 24)
	setDefaultInt(&c.NotifyMinCount, 1)
	setDefault(&c.HTTPAddr, ":8080")
	setDefault(&c.OutputDir, "var")
	setDefault(&c.LogLevel, "info")
	setDefault(&c.LogFormat, "json")

	for i := range c.Mailboxes {
		c.Mailboxes[i].Address = strings.ToLower(strings.TrimSpace(c.Mailboxes[i].Address))
		c.Mailboxes[i].applyDefaults()
	}
}

func (m *Mailbox) applyDefaults() {
	setDefault(&m.Provider, ProviderGmail)
	switch m.Provider {
	case ProviderGmail:
		setDefault(&m.RefreshToken, "keyring:gmail/"+m.Address)
	case ProviderIMAP:
		setDefaultInt(&m.IMAPPort, 993)
		setDefault(&m.IMAPUsername, m.Address)
		setDefault(&m.IMAPPassword, "keyring:imap/"+m.Address)
	case ProviderOutlook:
		setDefault(&m.AccessToken, "keyring:outlook/"+m.Address)
	}
}

// Validate checks enumerations and value ranges. Storage is checked separately
// by RequireStorage because some commands never touch the database.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	switch c.AIProvider {
	case "gemini", "ollama", "auto", "none":
	default:
		return fmt.Errorf("AI_PROVIDER must be gemini, ollama, auto or none, got %q", c.AIProvider)
	}
	switch c.SOPSource {
	case "notion", "file":
	default:
		return fmt.Errorf("SOP_SOURCE must be notion or file, got %q", c.SOPSource)
	}
	if c.OverlapMinutes < 0 || c.MaxAgeHours <= 0 || c.MaxResults <= 0 {
		return errors.New("OVERLAP_MINUTES must be >= 0, MAX_AGE_HOURS and MAX_RESULTS must be > 0")
	}
	if c.StaleHours <= 0 || c.LookbackDays <= 0 {
		return errors.New("STALE_HOURS and LOOKBACK_DAYS must be > 0")
	}
	for _, m := range c.Mailboxes {
		if m.Address == "" {
			return errors.New("mailbox entry without address")
		}
		switch m.Provider {
		case ProviderGmail, ProviderIMAP, ProviderOutlook:
		default:
			return fmt.Errorf("mailbox %s: unknown provider %q", m.Address, m.Provider)
		}
		if m.Provider == ProviderIMAP && m.IMAPHost == "" {
			return fmt.Errorf("mailbox %s: imap_host is required", m.Address)
		}
	}
	return nil
}

// RequireStorage fails fatally when the storage endpoint is missing.
func (c *Config) RequireStorage() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrMissingStorage
	}
	return nil
}

// ResolveMailboxes returns the configured mailboxes, restricted to accounts
// when it is non-empty. Accounts that are not declared in the YAML file are
// treated as Gmail mailboxes with keyring-backed refresh tokens.
func (c *Config) ResolveMailboxes(accounts []string) []Mailbox {
	declared := make(map[string]Mailbox, len(c.Mailboxes))
	order := make([]string, 0, len(c.Mailboxes))
	for _, m := range c.Mailboxes {
		if _, ok := declared[m.Address]; !ok {
			order = append(order, m.Address)
		}
		declared[m.Address] = m
	}
	for _, addr := range SplitList(c.TriageMailboxes) {
		if _, ok := declared[addr]; !ok {
			m := Mailbox{Address: addr}
			m.applyDefaults()
			declared[addr] = m
			order = append(order, addr)
		}
	}

	if len(accounts) == 0 {
		out := make([]Mailbox, 0, len(order))
		for _, addr := range order {
			out = append(out, declared[addr])
		}
		return out
	}

	out := make([]Mailbox, 0, len(accounts))
	seen := make(map[string]bool)
	for _, addr := range accounts {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		m, ok := declared[addr]
		if !ok {
			m = Mailbox{Address: addr}
			m.applyDefaults()
		}
		out = append(out, m)
	}
	return out
}

func (c *Config) Overlap() time.Duration {
	return time.Duration(c.OverlapMinutes) * time.Minute
}

func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// SplitList splits a comma separated list, lower-cases and trims entries and
// drops empty ones.
func SplitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func setDefaultInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the alarm-clock process.
type Config struct {
	// LogLevel is the minimum level written by the logger (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// Broker describes the MQTT connection to the remote pub/sub service.
	Broker Broker `yaml:"broker"`
	// Reconnect is the backoff used while the broker is unreachable.
	Reconnect Reconnect `yaml:"reconnect"`
	// Loop controls the reconciliation cadence.
	Loop Loop `yaml:"loop"`
	// Audio selects the playback backend and clip files.
	Audio Audio `yaml:"audio"`
	// QOD configures the quote-of-day notifier; only validated when the feature is enabled.
	QOD QOD `yaml:"qod"`
	// MetricsAddress enables the Prometheus endpoint when not empty.
	MetricsAddress string `yaml:"metrics_address"`
	// HealthAddress enables the gRPC health endpoint when not empty.
	HealthAddress string `yaml:"health_address"`
}

// Broker holds MQTT connection parameters.
type Broker struct {
	// URL is the broker address, e.g. tls://io.adafruit.com:8883.
	URL string `yaml:"url"`
	// Username is the account name; also used for the default topic prefix.
	Username string `yaml:"username"`
	// Key is the account key used as the MQTT password.
	Key string `yaml:"key"`
	// ClientID identifies this connection at the broker.
	ClientID string `yaml:"client_id"`
	// TopicPrefix is prepended to feed names, defaults to "<username>/feeds/".
	TopicPrefix string `yaml:"topic_prefix"`
	// Timeout bounds connect, subscribe and publish round trips.
	Timeout time.Duration `yaml:"timeout"`
	// Trace forwards the MQTT client's own debug output regardless of log_level.
	Trace bool `yaml:"trace"`
}

// Reconnect is a bounded exponential backoff.
type Reconnect struct {
	// InitialInterval is the wait after the first failed attempt.
	InitialInterval time.Duration `yaml:"initial_interval"`
	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration `yaml:"max_interval"`
}

// Loop controls the reconciliation loop.
type Loop struct {
	// TickInterval is the period between evaluations.
	TickInterval time.Duration `yaml:"tick_interval"`
	// KeepaliveInterval is the period between keepalive publications.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

// Audio configures the audio signal driver.
type Audio struct {
	// Backend is either "exec" or "mpd".
	Backend string `yaml:"backend"`
	// Player is the command used by the exec backend.
	Player string `yaml:"player"`
	// PlayerArgs are passed to Player before the clip path.
	PlayerArgs []string `yaml:"player_args"`
	// MPDAddress is the host:port of the MPD daemon for the mpd backend.
	MPDAddress string `yaml:"mpd_address"`
	// AlarmFile is the long clip played while ringing.
	AlarmFile string `yaml:"alarm_file"`
	// ChimeFile is the short clip played on ping.
	ChimeFile string `yaml:"chime_file"`
	// AlarmLoops is how many times the alarm clip is played.
	AlarmLoops int `yaml:"alarm_loops"`
}

// QOD configures the quote-of-day notifier.
type QOD struct {
	// URL returns a JSON object with "quote" and "author" fields.
	URL string `yaml:"url"`
	// Timeout bounds the fetch and the SMS delivery.
	Timeout time.Duration `yaml:"timeout"`
	// Twilio holds SMS delivery credentials.
	Twilio Twilio `yaml:"twilio"`
}

// Twilio holds SMS delivery credentials and numbers.
type Twilio struct {
	// AccountSID identifies the Twilio account.
	AccountSID string `yaml:"account_sid"`
	// AuthToken authenticates API calls.
	AuthToken string `yaml:"auth_token"`
	// From is the sending number.
	From string `yaml:"from"`
	// To is the receiving number.
	To string `yaml:"to"`
	// BaseURL overrides the API root, mostly for tests.
	BaseURL string `yaml:"base_url"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-clock-settings.yaml"

	// DefaultLogLevel is used when log_level is empty.
	DefaultLogLevel = "info"

	// DefaultClientID identifies the clock at the broker.
	DefaultClientID = "alarm-clock"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultReconnectInitial is the first reconnect wait.
	DefaultReconnectInitial = time.Second

	// DefaultReconnectMax caps the reconnect wait.
	DefaultReconnectMax = 30 * time.Second

	// DefaultTickInterval is the reconciliation period.
	DefaultTickInterval = time.Second

	// DefaultKeepaliveInterval is the keepalive period.
	DefaultKeepaliveInterval = 60 * time.Second

	// BackendExec plays clips with an external command.
	BackendExec = "exec"

	// BackendMPD plays clips through an MPD daemon.
	BackendMPD = "mpd"

	// DefaultPlayer is the exec backend command.
	DefaultPlayer = "aplay"

	// DefaultMPDAddress is where MPD listens by default.
	DefaultMPDAddress = "localhost:6600"

	// DefaultAlarmFile is the alarm clip.
	DefaultAlarmFile = "alarm.wav"

	// DefaultChimeFile is the ping clip.
	DefaultChimeFile = "chime.wav"

	// DefaultAlarmLoops matches a clip played once and repeated nine times.
	DefaultAlarmLoops = 10

	// DefaultQODURL is the quote-of-day API.
	DefaultQODURL = "http://quotesondesign.com/api/3.0/api-3.0.json"

	// DefaultQODTimeout bounds the quote fetch and SMS delivery.
	DefaultQODTimeout = 10 * time.Second

	// DefaultTwilioBaseURL is the Twilio REST API root.
	DefaultTwilioBaseURL = "https://api.twilio.com"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, invalid("file", fmt.Errorf("read settings: %w", err))
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, invalid("file", fmt.Errorf("unmarshal settings: %w", err))
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file holds credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
//
//nolint:cyclop // Flat list of independent checks.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if err := validateBroker(&cfg.Broker); err != nil {
		return err
	}

	if cfg.Reconnect.InitialInterval <= 0 {
		cfg.Reconnect.InitialInterval = DefaultReconnectInitial
	}

	if cfg.Reconnect.MaxInterval <= 0 {
		cfg.Reconnect.MaxInterval = DefaultReconnectMax
	}

	if cfg.Reconnect.MaxInterval < cfg.Reconnect.InitialInterval {
		return invalid("reconnect.max_interval", errIntervalOrder)
	}

	if cfg.Loop.TickInterval <= 0 {
		cfg.Loop.TickInterval = DefaultTickInterval
	}

	if cfg.Loop.KeepaliveInterval <= 0 {
		cfg.Loop.KeepaliveInterval = DefaultKeepaliveInterval
	}

	if err := validateAudio(&cfg.Audio); err != nil {
		return err
	}

	if cfg.QOD.URL == "" {
		cfg.QOD.URL = DefaultQODURL
	}

	if cfg.QOD.Timeout <= 0 {
		cfg.QOD.Timeout = DefaultQODTimeout
	}

	if cfg.QOD.Twilio.BaseURL == "" {
		cfg.QOD.Twilio.BaseURL = DefaultTwilioBaseURL
	}

	for field, address := range map[string]string{
		"metrics_address": cfg.MetricsAddress,
		"health_address":  cfg.HealthAddress,
	} {
		if address == "" {
			continue
		}

		if _, _, err := net.SplitHostPort(address); err != nil {
			return invalid(field, err)
		}
	}

	return nil
}

// ValidateQOD checks the settings needed by the quote-of-day notifier.
// It is only called when the feature is enabled on the command line.
func ValidateQOD(q *QOD) error {
	if _, err := url.ParseRequestURI(q.URL); err != nil {
		return invalid("qod.url", err)
	}

	if _, err := url.ParseRequestURI(q.Twilio.BaseURL); err != nil {
		return invalid("qod.twilio.base_url", err)
	}

	required := []struct {
		field string
		value string
	}{
		{"qod.twilio.account_sid", q.Twilio.AccountSID},
		{"qod.twilio.auth_token", q.Twilio.AuthToken},
		{"qod.twilio.from", q.Twilio.From},
		{"qod.twilio.to", q.Twilio.To},
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(r.field, errRequired)
		}
	}

	return nil
}

func validateBroker(b *Broker) error {
	if b.URL == "" {
		return invalid("broker.url", errRequired)
	}

	if _, err := url.Parse(b.URL); err != nil {
		return invalid("broker.url", err)
	}

	if b.Username == "" {
		return invalid("broker.username", errRequired)
	}

	if b.Key == "" {
		return invalid("broker.key", errRequired)
	}

	if b.ClientID == "" {
		b.ClientID = DefaultClientID
	}

	if b.TopicPrefix == "" {
		b.TopicPrefix = b.Username + "/feeds/"
	}

	if b.Timeout <= 0 {
		b.Timeout = DefaultTimeout
	}

	return nil
}

func validateAudio(a *Audio) error {
	if a.Backend == "" {
		a.Backend = BackendExec
	}

	switch a.Backend {
	case BackendExec:
		if a.Player == "" {
			a.Player = DefaultPlayer
		}
	case BackendMPD:
		if a.MPDAddress == "" {
			a.MPDAddress = DefaultMPDAddress
		}
	default:
		return invalid("audio.backend", fmt.Errorf("%w: %s", errUnknownBackend, a.Backend))
	}

	if a.AlarmFile == "" {
		a.AlarmFile = DefaultAlarmFile
	}

	if a.ChimeFile == "" {
		a.ChimeFile = DefaultChimeFile
	}

	if a.AlarmLoops == 0 {
		a.AlarmLoops = DefaultAlarmLoops
	}

	if a.AlarmLoops < 0 {
		return invalid("audio.alarm_loops", errNotPositive)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values (production)
const (
	DefaultDomain         = "warpcall.qzz.io"
	DefaultSTUN           = "stun:stun.l.google.com:19302"
	DefaultTURN           = "turn:warpcall.qzz.io"
	DefaultTURNUser       = "warpcall"
	DefaultTURNPass       = "warpcall-secret"
	DefaultConnectTimeout = 5 * time.Second
	DefaultPort           = 8080
	DefaultTLSPort        = 8443
)

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "WARPCALL_CONFIG"

// Config holds application configuration
type Config struct {
	// Domain is the signaling server domain
	Domain string `yaml:"domain"`

	// ServerURL is the signaling websocket URL. Built from Domain unless
	// set explicitly (e.g. ws://localhost:8080/ws for local servers).
	ServerURL string `yaml:"server_url"`

	// ICE servers for WebRTC
	STUNServer string `yaml:"stun_server"`
	TURNServer string `yaml:"turn_server"`
	TURNUser   string `yaml:"turn_username"`
	TURNPass   string `yaml:"turn_password"`

	// ForceRelay restricts ICE to TURN candidates.
	ForceRelay bool `yaml:"force_relay"`

	// ConnectTimeout bounds how long opening the signaling channel may take.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// AudioFile is an Ogg/Opus file used as the microphone. Empty sends
	// silence.
	AudioFile string `yaml:"audio_file"`

	// RecordPath receives the remote audio as Ogg/Opus when set.
	RecordPath string `yaml:"record_path"`

	// AllowInsecure permits capturing audio over an unencrypted channel to
	// a non-local server.
	AllowInsecure bool `yaml:"allow_insecure"`

	// Server settings.
	Port    int    `yaml:"port"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// Options for loading config with CLI flag overrides. Zero values mean
// "not given on the command line".
type Options struct {
	ConfigFile string

	Domain     string
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	ConnectTimeout time.Duration
	AudioFile      string
	RecordPath     string
	AllowInsecure  bool

	Port    int
	TLSCert string
	TLSKey  string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. YAML config file (--config or WARPCALL_CONFIG)
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	file, err := readFile(pick(opts.ConfigFile, os.Getenv(ConfigEnv)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Domain:        pick(opts.Domain, os.Getenv("DOMAIN"), file.Domain, DefaultDomain),
		ServerURL:     pick(opts.ServerURL, os.Getenv("SERVER_URL"), file.ServerURL),
		STUNServer:    pick(opts.STUNServer, os.Getenv("STUN_SERVER"), file.STUNServer, DefaultSTUN),
		TURNServer:    pick(opts.TURNServer, os.Getenv("TURN_SERVER"), file.TURNServer, DefaultTURN),
		TURNUser:      pick(opts.TURNUser, os.Getenv("TURN_USERNAME"), file.TURNUser, DefaultTURNUser),
		TURNPass:      pick(opts.TURNPass, os.Getenv("TURN_PASSWORD"), file.TURNPass, DefaultTURNPass),
		AudioFile:     pick(opts.AudioFile, os.Getenv("AUDIO_FILE"), file.AudioFile),
		RecordPath:    pick(opts.RecordPath, os.Getenv("RECORD_PATH"), file.RecordPath),
		TLSCert:       pick(opts.TLSCert, os.Getenv("TLS_CERT"), file.TLSCert),
		TLSKey:        pick(opts.TLSKey, os.Getenv("TLS_KEY"), file.TLSKey),
		ForceRelay:    opts.ForceRelay || envBool("FORCE_RELAY") || file.ForceRelay,
		AllowInsecure: opts.AllowInsecure || envBool("ALLOW_INSECURE") || file.AllowInsecure,
	}

	// An explicitly empty TURN server disables relaying.
	if v, ok := os.LookupEnv("TURN_SERVER"); ok && v == "" && opts.TURNServer == "" {
		cfg.TURNServer = ""
	}

	if cfg.ConnectTimeout, err = loadDuration(opts.ConnectTimeout, "CONNECT_TIMEOUT", file.ConnectTimeout, DefaultConnectTimeout); err != nil {
		return nil, err
	}

	defaultPort := DefaultPort
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		defaultPort = DefaultTLSPort
	}
	if cfg.Port, err = loadPort(opts.Port, file.Port, defaultPort); err != nil {
		return nil, err
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = fmt.Sprintf("wss://%s/ws", cfg.Domain)
	}

	return cfg, nil
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// ListenAddr is the address the signaling server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func readFile(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &file, nil
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func loadDuration(flag time.Duration, env string, file, def time.Duration) (time.Duration, error) {
	if flag > 0 {
		return flag, nil
	}
	if v := os.Getenv(env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", env, v, err)
		}
		if d <= 0 {
			return 0, errors.New(env + " must be positive")
		}
		return d, nil
	}
	if file > 0 {
		return file, nil
	}
	return def, nil
}

func loadPort(flag, file, def int) (int, error) {
	if flag > 0 {
		return flag, nil
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return 0, fmt.Errorf("invalid PORT %q", v)
		}
		return p, nil
	}
	if file > 0 {
		return file, nil
	}
	return def, nil
}

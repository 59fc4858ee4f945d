// Package config loads cowork configuration.
//
// The schema lives in schema.cue (embedded). A configuration file, when
// given, is CUE (JSON is valid CUE) unified with the #Config definition, so
// unknown keys and out-of-range values are rejected with positions.
// COWORK_* environment variables are filled in last and win over the file.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded configuration.
type Config struct {
	ListenAddr        string
	JournalPath       string
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
	SequenceCacheSize int
	SequenceIdleTTL   time.Duration
	SequenceEndedTTL  time.Duration
	LogLevel          string // "debug", "info", "warn", "error"
	LogFormat         string // "text" or "json"
	JWTSecret         string
	Broadcast         bool // push change notifications to websocket clients

	Dispatch Dispatch
}

// Dispatch configures the client-side dispatcher used by `cowork send`.
type Dispatch struct {
	Endpoint    string
	Token       string
	UserID      string
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Debounce    time.Duration
}

// raw mirrors #Config for cue.Value.Decode.
type raw struct {
	ListenAddr        string `json:"listen_addr"`
	JournalPath       string `json:"journal_path"`
	HeartbeatInterval string `json:"heartbeat_interval"`
	ShutdownTimeout   string `json:"shutdown_timeout"`
	SequenceCacheSize int    `json:"sequence_cache_size"`
	SequenceIdleTTL   string `json:"sequence_idle_ttl"`
	SequenceEndedTTL  string `json:"sequence_ended_ttl"`
	LogLevel          string `json:"log_level"`
	LogFormat         string `json:"log_format"`
	JWTSecret         string `json:"jwt_secret"`
	Broadcast         bool   `json:"broadcast"`
	Dispatch          struct {
		Endpoint    string `json:"endpoint"`
		Token       string `json:"token"`
		UserID      string `json:"user_id"`
		MaxRetries  int    `json:"max_retries"`
		BaseBackoff string `json:"base_backoff"`
		MaxBackoff  string `json:"max_backoff"`
		Debounce    string `json:"debounce"`
	} `json:"dispatch"`
}

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
)

// envVars maps environment variables onto schema paths.
var envVars = []struct {
	name string
	path string
	kind envKind
}{
	{"COWORK_LISTEN_ADDR", "listen_addr", envString},
	{"COWORK_JOURNAL_PATH", "journal_path", envString},
	{"COWORK_HEARTBEAT_INTERVAL", "heartbeat_interval", envString},
	{"COWORK_SHUTDOWN_TIMEOUT", "shutdown_timeout", envString},
	{"COWORK_SEQUENCE_CACHE_SIZE", "sequence_cache_size", envInt},
	{"COWORK_SEQUENCE_IDLE_TTL", "sequence_idle_ttl", envString},
	{"COWORK_SEQUENCE_ENDED_TTL", "sequence_ended_ttl", envString},
	{"COWORK_LOG_LEVEL", "log_level", envString},
	{"COWORK_LOG_FORMAT", "log_format", envString},
	{"COWORK_JWT_SECRET", "jwt_secret", envString},
	{"COWORK_BROADCAST", "broadcast", envBool},
	{"COWORK_DISPATCH_ENDPOINT", "dispatch.endpoint", envString},
	{"COWORK_DISPATCH_TOKEN", "dispatch.token", envString},
	{"COWORK_DISPATCH_USER_ID", "dispatch.user_id", envString},
	{"COWORK_DISPATCH_MAX_RETRIES", "dispatch.max_retries", envInt},
	{"COWORK_DISPATCH_BASE_BACKOFF", "dispatch.base_backoff", envString},
	{"COWORK_DISPATCH_MAX_BACKOFF", "dispatch.max_backoff", envString},
	{"COWORK_DISPATCH_DEBOUNCE", "dispatch.debounce", envString},
}

// Default returns the configuration with every default applied and no
// environment overrides.
func Default() (Config, error) {
	return load(nil, "", func(string) string { return "" })
}

// Load reads the configuration file at path (optional; "" means defaults
// only) and applies COWORK_* environment overrides.
func Load(path string) (Config, error) {
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		src = data
	}
	return load(src, path, os.Getenv)
}

// Parse decodes configuration source without consulting the environment.
func Parse(src []byte, filename string) (Config, error) {
	return load(src, filename, func(string) string { return "" })
}

func load(src []byte, filename string, getenv func(string) string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if len(src) > 0 {
		file := ctx.CompileBytes(src, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return Config{}, formatCUEError("parse config", err)
		}
		v = v.Unify(file)
	}

	for _, ev := range envVars {
		s := getenv(ev.name)
		if s == "" {
			continue
		}
		var val any = s
		switch ev.kind {
		case envInt:
			n, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, fmt.Errorf("%s: %q is not an integer", ev.name, s)
			}
			val = n
		case envBool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return Config{}, fmt.Errorf("%s: %q is not a boolean", ev.name, s)
			}
			val = b
		}
		v = v.FillPath(cue.ParsePath(ev.path), val)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError("invalid config", err)
	}

	var r raw
	if err := v.Decode(&r); err != nil {
		return Config{}, formatCUEError("decode config", err)
	}
	return r.config()
}

func (r raw) config() (Config, error) {
	cfg := Config{
		ListenAddr:        r.ListenAddr,
		JournalPath:       r.JournalPath,
		SequenceCacheSize: r.SequenceCacheSize,
		LogLevel:          r.LogLevel,
		LogFormat:         r.LogFormat,
		JWTSecret:         r.JWTSecret,
		Broadcast:         r.Broadcast,
		Dispatch: Dispatch{
			Endpoint:   r.Dispatch.Endpoint,
			Token:      r.Dispatch.Token,
			UserID:     r.Dispatch.UserID,
			MaxRetries: r.Dispatch.MaxRetries,
		},
	}

	durations := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"heartbeat_interval", r.HeartbeatInterval, &cfg.HeartbeatInterval},
		{"shutdown_timeout", r.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"sequence_idle_ttl", r.SequenceIdleTTL, &cfg.SequenceIdleTTL},
		{"sequence_ended_ttl", r.SequenceEndedTTL, &cfg.SequenceEndedTTL},
		{"dispatch.base_backoff", r.Dispatch.BaseBackoff, &cfg.Dispatch.BaseBackoff},
		{"dispatch.max_backoff", r.Dispatch.MaxBackoff, &cfg.Dispatch.MaxBackoff},
		{"dispatch.debounce", r.Dispatch.Debounce, &cfg.Dispatch.Debounce},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

// formatCUEError flattens a CUE error list into one message with positions.
func formatCUEError(op string, err error) error {
	var msgs []string
	for _, e := range errors.Errors(err) {
		msg := e.Error()
		if pos := e.Position(); pos.IsValid() {
			msg = fmt.Sprintf("%s: %s", pos, msg)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %s", op, strings.Join(msgs, "; "))
}

// Level maps LogLevel to a slog level.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. verbose forces debug level.
func (c Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := c.Level()
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

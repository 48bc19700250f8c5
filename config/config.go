package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// ParseConfig holds the options shared by every command that reads .vmg files.
type ParseConfig struct {
	Extension     string
	Workers       int
	Timezone      string
	Location      *time.Location
	BodySeparator string
	IncludeNumber []string
	IncludeBody   []string
	ExcludeNumber []string
	ExcludeBody   []string
}

// Config captures all command-line options required to run the importer.
type Config struct {
	SourceDir          string
	Parse              ParseConfig
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool
	TargetFolder       string
	SelfAddress        string
	StateDir           string
	StateBackend       string
	DryRun             bool
	LogLevel           string
	LogDir             string
}

// fileConfig mirrors Config for --config TOML files.
type fileConfig struct {
	Source             string   `toml:"source"`
	Ext                string   `toml:"ext"`
	Workers            int      `toml:"workers"`
	Timezone           string   `toml:"timezone"`
	BodySeparator      string   `toml:"body_separator"`
	IncludeNumber      []string `toml:"include_number"`
	IncludeBody        []string `toml:"include_body"`
	ExcludeNumber      []string `toml:"exclude_number"`
	ExcludeBody        []string `toml:"exclude_body"`
	IMAPHost           string   `toml:"imap_host"`
	IMAPPort           int      `toml:"imap_port"`
	IMAPUser           string   `toml:"imap_user"`
	IMAPPass           string   `toml:"imap_pass"`
	UseTLS             bool     `toml:"use_tls"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
	TargetFolder       string   `toml:"target_folder"`
	SelfAddress        string   `toml:"self_address"`
	StateDir           string   `toml:"state_dir"`
	StateBackend       string   `toml:"state_backend"`
	DryRun             bool     `toml:"dry_run"`
	LogLevel           string   `toml:"log_level"`
	LogDir             string   `toml:"log_dir"`
}

// RegisterParseFlags attaches the .vmg parsing flags to cmd.
func RegisterParseFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("ext", ".vmg", "File name extension of vMessage files")
	flags.Int("workers", runtime.NumCPU(), "Number of files parsed concurrently")
	flags.String("timezone", "Local", "IANA zone for VBODY dates without offset (e.g. Europe/Berlin)")
	flags.String("body-separator", "", "Separator inserted between body text lines (default: none)")
	flags.StringArray("include-number", nil, "Regex allow-list applied to phone numbers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-number", nil, "Regex block-list applied to phone numbers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")
}

// RegisterFlags attaches all CLI flags of the import command to cmd.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	RegisterParseFlags(cmd)

	flags := cmd.Flags()
	flags.String("config", "", "Optional TOML file with default values for these flags")
	flags.String("source", "", "Directory searched recursively for .vmg files")
	flags.String("imap-host", "", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("target-folder", "SMS", "Target IMAP folder for imported messages")
	flags.String("self-address", "me@sms.invalid", "Address used for the phone owner in From/To headers")
	flags.String("state-dir", defaultStateDir, "Directory for incremental sync state files")
	flags.String("state-backend", "jsonl", "State storage: jsonl or bolt")
	flags.Bool("dry-run", false, "Simulate the sync and emit stats without uploading")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files in addition to stdout")

	return nil
}

// LoadParseConfig converts the parsing flags of cmd into a ParseConfig.
func LoadParseConfig(cmd *cobra.Command) (ParseConfig, error) {
	flags := cmd.Flags()

	ext, err := flags.GetString("ext")
	if err != nil {
		return ParseConfig{}, err
	}
	workers, err := flags.GetInt("workers")
	if err != nil {
		return ParseConfig{}, err
	}
	timezone, err := flags.GetString("timezone")
	if err != nil {
		return ParseConfig{}, err
	}
	separator, err := flags.GetString("body-separator")
	if err != nil {
		return ParseConfig{}, err
	}
	includeNumber, err := flags.GetStringArray("include-number")
	if err != nil {
		return ParseConfig{}, err
	}
	includeBody, err := flags.GetStringArray("include-body")
	if err != nil {
		return ParseConfig{}, err
	}
	excludeNumber, err := flags.GetStringArray("exclude-number")
	if err != nil {
		return ParseConfig{}, err
	}
	excludeBody, err := flags.GetStringArray("exclude-body")
	if err != nil {
		return ParseConfig{}, err
	}

	pc := ParseConfig{
		Extension:     ext,
		Workers:       workers,
		Timezone:      timezone,
		BodySeparator: unescape(separator),
		IncludeNumber: includeNumber,
		IncludeBody:   includeBody,
		ExcludeNumber: excludeNumber,
		ExcludeBody:   excludeBody,
	}
	if err := finishParseConfig(&pc); err != nil {
		return ParseConfig{}, err
	}
	return pc, nil
}

// LoadConfig converts the parsed Cobra flags (and the optional --config
// file) into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	parseCfg, err := LoadParseConfig(cmd)
	if err != nil {
		return Config{}, err
	}
	configPath, err := flags.GetString("config")
	if err != nil {
		return Config{}, err
	}
	source, err := flags.GetString("source")
	if err != nil {
		return Config{}, err
	}
	imapHost, err := flags.GetString("imap-host")
	if err != nil {
		return Config{}, err
	}
	imapPort, err := flags.GetInt("imap-port")
	if err != nil {
		return Config{}, err
	}
	imapUser, err := flags.GetString("imap-user")
	if err != nil {
		return Config{}, err
	}
	imapPass, err := flags.GetString("imap-pass")
	if err != nil {
		return Config{}, err
	}
	useTLS, err := flags.GetBool("use-tls")
	if err != nil {
		return Config{}, err
	}
	insecureSkipVerify, err := flags.GetBool("insecure-skip-verify")
	if err != nil {
		return Config{}, err
	}
	targetFolder, err := flags.GetString("target-folder")
	if err != nil {
		return Config{}, err
	}
	selfAddress, err := flags.GetString("self-address")
	if err != nil {
		return Config{}, err
	}
	stateDir, err := flags.GetString("state-dir")
	if err != nil {
		return Config{}, err
	}
	stateBackend, err := flags.GetString("state-backend")
	if err != nil {
		return Config{}, err
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		SourceDir:          source,
		Parse:              parseCfg,
		IMAPHost:           imapHost,
		IMAPPort:           imapPort,
		IMAPUser:           imapUser,
		IMAPPass:           imapPass,
		UseTLS:             useTLS,
		InsecureSkipVerify: insecureSkipVerify,
		TargetFolder:       targetFolder,
		SelfAddress:        selfAddress,
		StateDir:           stateDir,
		StateBackend:       stateBackend,
		DryRun:             dryRun,
		LogLevel:           logLevel,
		LogDir:             logDir,
	}

	if configPath != "" {
		if err := applyFile(&cfg, configPath, flags.Changed); err != nil {
			return Config{}, err
		}
		if err := finishParseConfig(&cfg.Parse); err != nil {
			return Config{}, err
		}
	}

	if cfg.IMAPPass == "" {
		cfg.IMAPPass = os.Getenv("IMAP_PASS")
	}

	if cfg.StateDir == "" {
		cfg.StateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}
	cfg.StateDir = filepath.Clean(cfg.StateDir)
	cfg.StateBackend = strings.ToLower(strings.TrimSpace(cfg.StateBackend))

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyFile copies every key defined in the TOML file at path into cfg
// unless the matching flag was set on the command line.
func applyFile(cfg *Config, path string, changed func(string) bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	use := func(key, flag string) bool {
		return meta.IsDefined(key) && !changed(flag)
	}

	if use("source", "source") {
		cfg.SourceDir = raw.Source
	}
	if use("ext", "ext") {
		cfg.Parse.Extension = raw.Ext
	}
	if use("workers", "workers") {
		cfg.Parse.Workers = raw.Workers
	}
	if use("timezone", "timezone") {
		cfg.Parse.Timezone = raw.Timezone
	}
	if use("body_separator", "body-separator") {
		cfg.Parse.BodySeparator = raw.BodySeparator
	}
	if use("include_number", "include-number") {
		cfg.Parse.IncludeNumber = raw.IncludeNumber
	}
	if use("include_body", "include-body") {
		cfg.Parse.IncludeBody = raw.IncludeBody
	}
	if use("exclude_number", "exclude-number") {
		cfg.Parse.ExcludeNumber = raw.ExcludeNumber
	}
	if use("exclude_body", "exclude-body") {
		cfg.Parse.ExcludeBody = raw.ExcludeBody
	}
	if use("imap_host", "imap-host") {
		cfg.IMAPHost = raw.IMAPHost
	}
	if use("imap_port", "imap-port") {
		cfg.IMAPPort = raw.IMAPPort
	}
	if use("imap_user", "imap-user") {
		cfg.IMAPUser = raw.IMAPUser
	}
	if use("imap_pass", "imap-pass") {
		cfg.IMAPPass = raw.IMAPPass
	}
	if use("use_tls", "use-tls") {
		cfg.UseTLS = raw.UseTLS
	}
	if use("insecure_skip_verify", "insecure-skip-verify") {
		cfg.InsecureSkipVerify = raw.InsecureSkipVerify
	}
	if use("target_folder", "target-folder") {
		cfg.TargetFolder = raw.TargetFolder
	}
	if use("self_address", "self-address") {
		cfg.SelfAddress = raw.SelfAddress
	}
	if use("state_dir", "state-dir") {
		cfg.StateDir = raw.StateDir
	}
	if use("state_backend", "state-backend") {
		cfg.StateBackend = raw.StateBackend
	}
	if use("dry_run", "dry-run") {
		cfg.DryRun = raw.DryRun
	}
	if use("log_level", "log-level") {
		cfg.LogLevel = raw.LogLevel
	}
	if use("log_dir", "log-dir") {
		cfg.LogDir = raw.LogDir
	}

	return nil
}

func finishParseConfig(pc *ParseConfig) error {
	loc, err := loadLocation(pc.Timezone)
	if err != nil {
		return err
	}
	pc.Location = loc
	if pc.Workers <= 0 {
		pc.Workers = runtime.NumCPU()
	}
	includeActive := len(pc.IncludeNumber) > 0 || len(pc.IncludeBody) > 0
	excludeActive := len(pc.ExcludeNumber) > 0 || len(pc.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}
	return nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.SourceDir) == "" {
		return fmt.Errorf("--source is required")
	}
	if !cfg.DryRun {
		if cfg.IMAPHost == "" {
			return fmt.Errorf("--imap-host is required")
		}
		if cfg.IMAPUser == "" {
			return fmt.Errorf("--imap-user is required")
		}
		if cfg.IMAPPass == "" {
			return fmt.Errorf("IMAP password must be provided via --imap-pass or IMAP_PASS env var")
		}
	}
	if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
		return fmt.Errorf("--imap-port must be between 1 and 65535")
	}

	switch cfg.StateBackend {
	case "jsonl", "bolt":
	default:
		return fmt.Errorf("invalid --state-backend: %s", cfg.StateBackend)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid --timezone %q: %w", name, err)
	}
	return loc, nil
}

// unescape turns the literal sequences \n, \r and \t typed on a shell into
// the characters they name.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t").Replace(s)
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vmg-to-imap", "state"), nil
}

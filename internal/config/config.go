package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Sink types selectable via the "sink" setting.
const (
	SinkFile   = "file"
	SinkSyslog = "syslog"
	SinkHTTP   = "http"
)

// Settings holds the full runtime configuration. It is built once at
// startup and passed by pointer into component constructors; nothing
// mutates it afterwards.
type Settings struct {
	// Audit API
	AuthURL      string
	AuditLogsURL string
	AccountID    string
	Username     string
	Password     string

	// Sink selection and per-sink settings
	SinkType       string
	FilePath       string
	SyslogHost     string
	SyslogPort     int
	SyslogProtocol string
	HTTPURL        string
	HTTPUsername   string
	HTTPPassword   string
	HTTPVerifyTLS  bool

	// Polling and state
	PollInterval time.Duration
	StatePath    string
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("auth_url", "https://cloud.api.selcloud.ru/identity/v3/auth/tokens")
	v.SetDefault("audit_logs_url", "https://api.selectel.ru/audit-logs/v1/logs")
	v.SetDefault("sink", SinkFile)
	v.SetDefault("file_path", "events.txt")
	v.SetDefault("syslog_host", "127.0.0.1")
	v.SetDefault("syslog_port", 5514)
	v.SetDefault("syslog_protocol", "udp")
	v.SetDefault("http_verify_tls", true)
	v.SetDefault("poll_interval", 30)
	v.SetDefault("state_path", "auditpump-state.db")
}

// Load builds Settings from the given viper instance.
func Load(v *viper.Viper) *Settings {
	return &Settings{
		AuthURL:        v.GetString("auth_url"),
		AuditLogsURL:   v.GetString("audit_logs_url"),
		AccountID:      v.GetString("account_id"),
		Username:       v.GetString("username"),
		Password:       v.GetString("password"),
		SinkType:       v.GetString("sink"),
		FilePath:       v.GetString("file_path"),
		SyslogHost:     v.GetString("syslog_host"),
		SyslogPort:     v.GetInt("syslog_port"),
		SyslogProtocol: v.GetString("syslog_protocol"),
		HTTPURL:        v.GetString("http_url"),
		HTTPUsername:   v.GetString("http_username"),
		HTTPPassword:   v.GetString("http_password"),
		HTTPVerifyTLS:  v.GetBool("http_verify_tls"),
		PollInterval:   time.Duration(v.GetInt("poll_interval")) * time.Second,
		StatePath:      v.GetString("state_path"),
	}
}

// Validate checks that required settings are present. A failure here is
// fatal to startup.
func (s *Settings) Validate() error {
	if s.Username == "" || s.Password == "" || s.AccountID == "" {
		return fmt.Errorf("username, password and account_id are required")
	}

	switch s.SinkType {
	case SinkFile:
		if s.FilePath == "" {
			return fmt.Errorf("file sink requires file_path")
		}
	case SinkSyslog:
		if s.SyslogHost == "" || s.SyslogPort == 0 {
			return fmt.Errorf("syslog sink requires syslog_host and syslog_port")
		}
		if s.SyslogProtocol != "udp" && s.SyslogProtocol != "tcp" {
			return fmt.Errorf("unknown syslog protocol: %s (must be 'udp' or 'tcp')", s.SyslogProtocol)
		}
	case SinkHTTP:
		if s.HTTPURL == "" || s.HTTPUsername == "" || s.HTTPPassword == "" {
			return fmt.Errorf("http sink requires http_url, http_username and http_password")
		}
	default:
		return fmt.Errorf("unknown sink type: %s (must be 'file', 'syslog' or 'http')", s.SinkType)
	}

	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	return nil
}

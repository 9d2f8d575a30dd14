package config

import "time"

// SessionsConfig содержит настройки сессий редактирования.
type SessionsConfig struct {
	Debounce     time.Duration `yaml:"debounce" env:"NOTES_SESSION_DEBOUNCE" env-default:"200ms"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"NOTES_SESSION_IDLE_TIMEOUT" env-default:"30m"`
	ReapInterval time.Duration `yaml:"reap_interval" env:"NOTES_SESSION_REAP_INTERVAL" env-default:"1m"`
}

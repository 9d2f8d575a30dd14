package config

import "time"

// RealtimeConfig содержит настройки канала изменений и защиты удаленного хранилища.
type RealtimeConfig struct {
	Channel string `yaml:"channel" env:"NOTES_CHANGES_CHANNEL" env-default:"notes-changes"`

	BreakerErrorThreshold   int           `yaml:"breaker_error_threshold" env:"NOTES_BREAKER_ERROR_THRESHOLD" env-default:"5"`
	BreakerSuccessThreshold int           `yaml:"breaker_success_threshold" env:"NOTES_BREAKER_SUCCESS_THRESHOLD" env-default:"2"`
	BreakerTimeout          time.Duration `yaml:"breaker_timeout" env:"NOTES_BREAKER_TIMEOUT" env-default:"10s"`

	PreferencesTTL time.Duration `yaml:"preferences_ttl" env:"NOTES_PREFERENCES_TTL" env-default:"0s"`
}

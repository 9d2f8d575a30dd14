package redis

import (
	"net"
	"strconv"
	"time"
)

// Значения по умолчанию. Должны совпадать с тегами env-default в конфигурации сервиса.
const (
	DefaultHost     = "redis"
	DefaultPort     = 6379
	DefaultPoolSize = 10
	DefaultTimeout  = 5 * time.Second

	// DefaultClientName виден в CLIENT LIST как имя соединений сервиса.
	DefaultClientName = "opennotes"
)

// Config содержит настройки подключения к Redis.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration

	// ClientName передается серверу командой CLIENT SETNAME.
	ClientName string
}

// DefaultConfig возвращает конфигурацию Redis по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		PoolSize: DefaultPoolSize,
		Timeout:  DefaultTimeout,

		ClientName: DefaultClientName,
	}
}

// Addr возвращает адрес в формате host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

package global

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Conf global config
var Conf Config

type Config struct {
	Host         string             `yaml:"host"`
	Port         int                `yaml:"port"`
	Scheme       string             `yaml:"scheme"`
	Mode         string             `yaml:"mode"` // debug or release
	CouchDB      CouchDBConfig      `yaml:"couchdb"`
	Redis        RedisConfig        `yaml:"redis"`
	Prometheus   PrometheusConfig   `yaml:"prometheus"`
	Mail         MailConfig         `yaml:"mail"`
	Turnstile    TurnstileConfig    `yaml:"turnstile"`
	RateLimit    RateLimitConfig    `yaml:"ratelimit"`
	Verification VerificationConfig `yaml:"verification"`
}

type CouchDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MailConfig configures the outbound mail provider (currently only mailgun)
// and the alias domain served by the inbound relay webhook.
type MailConfig struct {
	Provider          string `yaml:"provider"`
	Domain            string `yaml:"domain"`      // sending domain (e.g. mail.keyrelay.cash)
	AliasDomain       string `yaml:"aliasDomain"` // domain of claimed alias handles (e.g. keyrelay.cash)
	SendApiKey        string `yaml:"sendapikey"`
	WebhookSigningKey string `yaml:"webhooksigningkey"`
	FromName          string `yaml:"fromName"`
	FromAddress       string `yaml:"fromAddress"`
	ResendCooldownMin int    `yaml:"resendCooldownMinutes"`
}

type TurnstileConfig struct {
	SecretKey string `yaml:"secretKey"`
	VerifyURL string `yaml:"verifyUrl"`
}

type RateLimitConfig struct {
	MaxRequests   int `yaml:"maxRequests"`
	WindowMinutes int `yaml:"windowMinutes"`
}

type VerificationConfig struct {
	Required      bool `yaml:"required"`      // when true, mint requires a consumed email code
	CodeTTLMin    int  `yaml:"codeTtlMinutes"`
	MaxPerHour    int  `yaml:"maxPerHour"`
}

// NewYamlConfig loads a yaml configuration file into the given config struct
func NewYamlConfig(path string, conf *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(content, conf); err != nil {
		return err
	}
	if conf.Scheme == "" {
		conf.Scheme = "http"
	}
	if conf.Mail.ResendCooldownMin <= 0 {
		conf.Mail.ResendCooldownMin = 5
	}
	if conf.RateLimit.MaxRequests <= 0 {
		conf.RateLimit.MaxRequests = 10
	}
	if conf.RateLimit.WindowMinutes <= 0 {
		conf.RateLimit.WindowMinutes = 60
	}
	if conf.Verification.CodeTTLMin <= 0 {
		conf.Verification.CodeTTLMin = 10
	}
	if conf.Verification.MaxPerHour <= 0 {
		conf.Verification.MaxPerHour = 5
	}
	return nil
}

package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Autopilot AutopilotConfig `yaml:"autopilot" json:"autopilot"`
	Stripe    StripeConfig    `yaml:"stripe" json:"stripe"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp" json:"whatsapp"`
	Telegram  TelegramConfig  `yaml:"telegram" json:"telegram"`
	Mail      MailConfig      `yaml:"mail" json:"mail"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`
	Site      SiteConfig      `yaml:"site" json:"site"`
}

type ServerConfig struct {
	Port    int    `yaml:"port" json:"port"`
	DataDir string `yaml:"dataDir" json:"dataDir"` // uploaded documents land here
}

type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwtSecret" json:"-"`
	AccessTTLMinutes int    `yaml:"accessTTLMinutes" json:"accessTTLMinutes"`
	RefreshTTLHours  int    `yaml:"refreshTTLHours" json:"refreshTTLHours"`
}

func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTTLMinutes) * time.Minute
}

func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTTLHours) * time.Hour
}

type AutopilotConfig struct {
	URL         string `yaml:"url" json:"url"`
	APIKey      string `yaml:"apiKey" json:"-"`
	ContextSize int    `yaml:"contextSize" json:"contextSize"` // messages sent per completion
}

type StripeConfig struct {
	SecretKey     string `yaml:"secretKey" json:"-"`
	WebhookSecret string `yaml:"webhookSecret" json:"-"`
}

type WhatsAppConfig struct {
	NumberID    string `yaml:"numberId" json:"numberId"`
	AccessToken string `yaml:"accessToken" json:"-"`
	VerifyToken string `yaml:"verifyToken" json:"-"`
}

type TelegramConfig struct {
	Token string `yaml:"token" json:"-"`
}

type MailConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	APIKey   string `yaml:"apiKey" json:"-"`
	From     string `yaml:"from" json:"from"`
}

type NotifyConfig struct {
	AMQPURL  string `yaml:"amqpUrl" json:"-"`
	Exchange string `yaml:"exchange" json:"exchange"`
}

type SiteConfig struct {
	Domain string `yaml:"domain" json:"domain"` // used in password reset links
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8800,
			DataDir: "data",
		},
		Database: DatabaseConfig{Path: "chatd.db"},
		Auth: AuthConfig{
			AccessTTLMinutes: 30,
			RefreshTTLHours:  24 * 7,
		},
		Autopilot: AutopilotConfig{ContextSize: 25},
		Notify:    NotifyConfig{Exchange: "chatd.notifications"},
		Site:      SiteConfig{Domain: "localhost:8800"},
	}
}

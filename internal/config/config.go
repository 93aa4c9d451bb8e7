package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Images  ImagesConfig  `mapstructure:"images"`
	CORS    CORSConfig    `mapstructure:"cors"`
	AppHost string        `mapstructure:"host"`
}

type DBConfig struct {
	Source string `mapstructure:"source"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Path          string `mapstructure:"path"`
	SigningSecret string `mapstructure:"signing_secret"`
	URLTTLMinutes int    `mapstructure:"url_ttl_minutes"`
}

type AuthConfig struct {
	SessionTTLHours          int  `mapstructure:"session_ttl_hours"`
	RequireEmailConfirmation bool `mapstructure:"require_email_confirmation"`
}

type OAuthConfig struct {
	Google OAuthProviderConfig `mapstructure:"google"`
	Github OAuthProviderConfig `mapstructure:"github"`
}

type OAuthProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type ImagesConfig struct {
	Providers         []string `mapstructure:"providers"`
	FallbackURL       string   `mapstructure:"fallback_url"`
	GenerationDelayMS int      `mapstructure:"generation_delay_ms"`
	FetchTimeoutSec   int      `mapstructure:"fetch_timeout_sec"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.SetDefault("auth.session_ttl_hours", 24)
	viper.SetDefault("storage.url_ttl_minutes", 60)
	viper.SetDefault("images.providers", []string{"https://picsum.photos/seed/%s/1024/1024"})
	viper.SetDefault("images.fallback_url", "https://placehold.co/1024x1024/png?text=imaginate")
	viper.SetDefault("images.generation_delay_ms", 1500)
	viper.SetDefault("images.fetch_timeout_sec", 15)
	viper.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

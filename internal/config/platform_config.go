package config

import "time"

type PlatformConfig interface {
	GetPlatformAuthURL() string
	GetSecretKey() string
	GetSecretIV() string
	GetPlatformTimeout() time.Duration
	GetPlatformTokenHours() int
}

type Platform struct {
	AuthURL   string        `env:"AVE_AUTH_URL" envDefault:"https://app.aveonline.co/api/auth/v3.0/index.php"`
	SecretKey string        `env:"SECRET_KEY"`
	SecretIV  string        `env:"SECRET_IV"`
	Timeout   time.Duration `env:"AVE_HTTP_TIMEOUT" envDefault:"15s"`
}

var _ PlatformConfig = Platform{}

func (p Platform) GetPlatformAuthURL() string {
	return p.AuthURL
}

func (p Platform) GetSecretKey() string {
	return p.SecretKey
}

func (p Platform) GetSecretIV() string {
	return p.SecretIV
}

func (p Platform) GetPlatformTimeout() time.Duration {
	return p.Timeout
}

// GetPlatformTokenHours is the lifetime requested for platform tokens.
func (Platform) GetPlatformTokenHours() int {
	return 48
}

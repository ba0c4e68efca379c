package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tubeaccounts/internal/flagx"
	"github.com/dmitrijs2005/tubeaccounts/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Only keys
// present in the file override the current values.
type JsonConfig struct {
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	LogLevel                     *string         `json:"log_level"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	TokenIssuer                  *string         `json:"token_issuer"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3PublicURL                  *string         `json:"s3_public_url"`
	MaxImageBytes                *int64          `json:"max_image_bytes"`
	RedisAddr                    *string         `json:"redis_addr"`
	MaxLoginAttempts             *int            `json:"max_login_attempts"`
	LoginCooldown                *timex.Duration `json:"login_cooldown"`
}

// parseJson overlays values from the file given by -c/-config. It panics
// when the file cannot be read or parsed.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.LogLevel, c.LogLevel)
	set(&config.AccessTokenSecret, c.AccessTokenSecret)
	set(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	set(&config.TokenIssuer, c.TokenIssuer)
	set(&config.BcryptCost, c.BcryptCost)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3PublicURL, c.S3PublicURL)
	set(&config.MaxImageBytes, c.MaxImageBytes)
	set(&config.RedisAddr, c.RedisAddr)
	set(&config.MaxLoginAttempts, c.MaxLoginAttempts)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LoginCooldown != nil {
		config.LoginCooldown = c.LoginCooldown.Duration
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

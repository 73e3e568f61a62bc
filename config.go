package oidc

import (
	"os"
	"strconv"
	"time"

	"github.com/256dpi/xo"
)

// Config collects the adjustable settings of a provider deployment.
type Config struct {
	// The issuer identifier included in issued tokens.
	Issuer string

	// The artifact lifetimes.
	GrantLifetime        time.Duration
	AccessTokenLifetime  time.Duration
	IDTokenLifetime      time.Duration
	RefreshTokenLifetime time.Duration

	// The paths to the DER encoded RSA keys and the PEM encoded public key.
	PrivateKeyFile   string
	PublicKeyFile    string
	PublicKeyPEMFile string

	// The expiry applied to session writes.
	SessionLifetime time.Duration

	// The backing service addresses.
	MongoURI      string
	RedisEndpoint string

	// The password assigned to the initial admin account.
	AdminPassword string

	// The address the example server binds to.
	BindAddr string
}

// ConfigFromEnv sources a config from the environment. Missing variables
// fall back to development defaults.
func ConfigFromEnv() (Config, error) {
	// prepare config
	config := Config{
		Issuer:           envString("ISSUER", "http://localhost:8080"),
		PrivateKeyFile:   envString("JWT_PRIVATE_KEY", "private_key.der"),
		PublicKeyFile:    envString("JWT_PUBLIC_KEY", "public_key.der"),
		PublicKeyPEMFile: envString("JWT_PUBLIC_KEY_PEM", "public_key.pem"),
		MongoURI:         envString("MONGO_URI", "mongodb://0.0.0.0/oidc"),
		RedisEndpoint:    envString("REDIS_ENDPOINT", "0.0.0.0:6379"),
		AdminPassword:    envString("DEFAULT_ADMIN_PASSWORD", "admin"),
		BindAddr:         envString("BIND_ADDR", "0.0.0.0:8080"),
	}

	// parse lifetimes
	var err error
	config.GrantLifetime, err = envSeconds("DEFAULT_GRANT_MAX_AGE_SEC", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}
	config.AccessTokenLifetime, err = envSeconds("DEFAULT_ACCESS_TOKEN_MAX_AGE_SEC", time.Hour)
	if err != nil {
		return Config{}, err
	}
	config.IDTokenLifetime, err = envSeconds("DEFAULT_ID_TOKEN_MAX_AGE_SEC", time.Hour)
	if err != nil {
		return Config{}, err
	}
	config.RefreshTokenLifetime, err = envSeconds("DEFAULT_REFRESH_TOKEN_MAX_AGE_SEC", 30*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	config.SessionLifetime, err = envSeconds("REDIS_EXPIRES_SEC", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// envString reads the named variable or returns the provided fallback.
func envString(name, fallback string) string {
	// get value
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}

	return value
}

// envSeconds reads the named variable as a number of seconds or returns the
// provided fallback.
func envSeconds(name string, fallback time.Duration) (time.Duration, error) {
	// get value
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}

	// parse number
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, xo.F("invalid value for %s", name)
	}

	return time.Duration(sec) * time.Second, nil
}

// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string

	DatabaseURL string
	// RedisURL selects the distributed throttle; empty means the
	// in-process limiter.
	RedisURL string

	// MessageKey is the 64-char hex key for at-rest message encryption.
	// Absent or malformed, the server falls back to a built-in key and
	// logs the insecure state rather than refusing to start.
	MessageKey string

	AllowedOrigins []string

	UserTimeout      time.Duration
	MessageRetention time.Duration
	RetrieveLimit    int
	RateLimitWindow  time.Duration
	ReapInterval     time.Duration
}

// Load reads configuration from the environment with working defaults for
// local development.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8081")
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("DATABASE_URL", "postgres://localhost/fadechat?sslmode=disable")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("MESSAGE_KEY", "")
	v.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("USER_TIMEOUT", time.Minute)
	v.SetDefault("MESSAGE_RETENTION", 24*time.Hour)
	v.SetDefault("RETRIEVE_LIMIT", 50)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Second)
	v.SetDefault("REAP_INTERVAL", time.Hour)

	return &Config{
		Port:             v.GetString("PORT"),
		Environment:      v.GetString("ENVIRONMENT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		RedisURL:         v.GetString("REDIS_URL"),
		MessageKey:       v.GetString("MESSAGE_KEY"),
		AllowedOrigins:   v.GetStringSlice("ALLOWED_ORIGINS"),
		UserTimeout:      v.GetDuration("USER_TIMEOUT"),
		MessageRetention: v.GetDuration("MESSAGE_RETENTION"),
		RetrieveLimit:    v.GetInt("RETRIEVE_LIMIT"),
		RateLimitWindow:  v.GetDuration("RATE_LIMIT_WINDOW"),
		ReapInterval:     v.GetDuration("REAP_INTERVAL"),
	}
}

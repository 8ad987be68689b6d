package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load applies variables from a .env file in the working directory, leaving
// already-set environment variables alone. A missing file is reported as an
// error the caller may ignore; deployments that configure through the real
// environment run without one. Pass explicit paths to load other files.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the named variable, or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the named variable parsed as an integer, or fallback
// when it is unset, empty, or malformed.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

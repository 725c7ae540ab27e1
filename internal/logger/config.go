package logger

import (
	"os"
	"strings"
)

const envPrefix = "CLICONTROL_"

func DefaultConfig() Config {
	return Config{
		Level:      getEnvOrDefault(envPrefix+"LOG_LEVEL", "info"),
		Debug:      getEnvBoolOrDefault(envPrefix+"DEBUG", false),
		Output:     getEnvOrDefault(envPrefix+"LOG_OUTPUT", "stderr"),
		TimeFormat: getEnvOrDefault(envPrefix+"LOG_TIME_FORMAT", ""),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	value = strings.ToLower(value)

	return value == "true" || value == "1" || value == "yes" || value == "on"
}

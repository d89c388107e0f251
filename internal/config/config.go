package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Addr     string
	LogLevel string
	Env      string

	// ICE settings. TURN is enabled only when both TurnURL and TurnAuth are
	// set; the credential lifetime defaults to three hours.
	StunURL            string
	TurnURL            string
	TurnAuth           string
	TurnAuthExpiration time.Duration

	DBURL string

	KeepalivePingInt  time.Duration // Keepalive ping interval
	KeepalivePongWait time.Duration // Time to wait for pong
	WriteDeadline     time.Duration // Write operation timeout
}

// Load parses and returns the application configuration
// Priority: command-line flags > environment variables > defaults
// (.env files are loaded into the environment by main before this runs.)
func Load() *Config {
	addr := flag.String("addr", getEnv("SERVER_ADDR", ":8082"), "http service address")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	env := flag.String("env", getEnv("ENVIRONMENT", "development"), "environment (development, staging, production)")
	stunURL := flag.String("stun-url", getEnv("STUN_URL", ""), "STUN server host:port")
	turnURL := flag.String("turn-url", getEnv("TURN_URL", ""), "TURN server host:port")
	turnAuth := flag.String("turn-auth", getEnv("TURN_AUTH", ""), "TURN shared auth secret")
	turnExpHours := flag.String("turn-auth-expiration-hours", getEnv("TURN_AUTH_EXPIRATION_HOURS", "3"), "TURN credential lifetime in hours")
	dbURL := flag.String("db-url", getEnv("DB_URL", ""), "postgres connection URL")
	pingInt := flag.String("keepalive-ping", getEnv("KEEPALIVE_PING", "30"), "keepalive ping interval in seconds")
	pongWait := flag.String("keepalive-pong", getEnv("KEEPALIVE_PONG", "60"), "keepalive pong wait time in seconds")
	writeDeadline := flag.String("write-deadline", getEnv("WRITE_DEADLINE", "5"), "write operation timeout in seconds")
	flag.Parse()

	pingIntSecs, _ := strconv.ParseInt(*pingInt, 10, 64)
	pongWaitSecs, _ := strconv.ParseInt(*pongWait, 10, 64)
	writeDeadlineSecs, _ := strconv.ParseInt(*writeDeadline, 10, 64)

	return &Config{
		Addr:               *addr,
		LogLevel:           strings.ToLower(*logLevel),
		Env:                strings.ToLower(*env),
		StunURL:            *stunURL,
		TurnURL:            *turnURL,
		TurnAuth:           *turnAuth,
		TurnAuthExpiration: time.Duration(parseHours(*turnExpHours)) * time.Hour,
		DBURL:              *dbURL,
		KeepalivePingInt:   time.Duration(pingIntSecs) * time.Second,
		KeepalivePongWait:  time.Duration(pongWaitSecs) * time.Second,
		WriteDeadline:      time.Duration(writeDeadlineSecs) * time.Second,
	}
}

// parseHours falls back to the default lifetime on unparseable input.
func parseHours(s string) int64 {
	hours, err := strconv.ParseInt(s, 10, 64)
	if err != nil || hours <= 0 {
		return 3
	}
	return hours
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Time-series database configuration
	Influx InfluxConfig `json:"influx"`

	// Event log database configuration
	Mongo MongoConfig `json:"mongo"`

	// MQTT configuration
	MQTT MQTTConfig `json:"mqtt"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`

	// Sensor down/inactive detection configuration
	Liveness LivenessConfig `json:"liveness"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
	MinConns int    `json:"min_conns"`
}

// InfluxConfig holds time-series database configuration
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// MongoConfig holds event log database configuration
type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	// Enabled controls configuration/value publishing. When false the API
	// service never connects to the broker and all publish steps are skipped.
	Enabled     bool          `json:"enabled"`
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecretKey         string        `json:"jwt_secret_key"`
	JWTIssuer            string        `json:"jwt_issuer"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
	Admin                AdminConfig   `json:"admin"`
}

// AdminConfig holds the bootstrap super-admin user configuration
type AdminConfig struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// LivenessConfig holds sensor down/inactive detection configuration
type LivenessConfig struct {
	SweepInterval    time.Duration `json:"sweep_interval"`
	DownAfter        time.Duration `json:"down_after"`
	InactiveAfter    time.Duration `json:"inactive_after"`
	DisableDetection bool          `json:"disable_detection"`
}

// MqttServiceConfig holds configuration for the device-facing MQTT service
type MqttServiceConfig struct {
	MQTT       MQTTConfig     `json:"mqtt"`
	Database   DatabaseConfig `json:"database"`
	Influx     InfluxConfig   `json:"influx"`
	Mongo      MongoConfig    `json:"mongo"`
	Logging    LoggingConfig  `json:"logging"`
	HealthPort string         `json:"health_port"`
}

func loadMQTT(clientID string) MQTTConfig {
	return MQTTConfig{
		Enabled:     getBool("MQTT_ENABLED", true),
		BrokerHost:  getEnv("BROKER_HOST", "localhost"),
		BrokerPort:  getInt("BROKER_PORT", 1883),
		BrokerUser:  getEnv("BROKER_USER", ""),
		BrokerPass:  getEnv("BROKER_PASS", ""),
		UseTLS:      getBool("BROKER_TLS", false),
		CACertPath:  getEnv("BROKER_CA_FILE", ""),
		ClientID:    getEnv("MQTT_CLIENT_ID", clientID),
		SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
		KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
		PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
	}
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getInt("POSTGRES_PORT", 5432),
		User:     getRequiredEnv("POSTGRES_USER"),
		Password: getRequiredEnv("POSTGRES_PASSWORD"),
		DBName:   getEnv("POSTGRES_DB", "snms"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxConns: getInt("POSTGRES_MAX_CONNS", 25),
		MinConns: getInt("POSTGRES_MIN_CONNS", 5),
	}
}

func loadInflux() InfluxConfig {
	return InfluxConfig{
		URL:    getEnv("INFLUX_URL", "http://localhost:8086"),
		Token:  getRequiredEnv("INFLUX_TOKEN"),
		Org:    getEnv("INFLUX_ORG", "snms"),
		Bucket: getEnv("INFLUX_BUCKET", "sensor_values"),
	}
}

func loadMongo() MongoConfig {
	return MongoConfig{
		URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database:   getEnv("MONGO_DB", "snms"),
		Collection: getEnv("MONGO_EVENT_COLLECTION", "event_logs"),
	}
}

func loadLogging() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
	}
}

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(); err != nil {
		// Silently ignore .env file loading errors
		// This allows the application to work with environment variables set directly
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Database: loadDatabase(),
		Influx:   loadInflux(),
		Mongo:    loadMongo(),
		MQTT:     loadMQTT("snms-api-service"),
		Auth: AuthConfig{
			JWTSecretKey:         getEnv("JWT_SECRET_KEY", "change-this-secret-in-production"),
			JWTIssuer:            getEnv("JWT_ISSUER", "snms-api-service"),
			AccessTokenDuration:  getDuration("JWT_ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getDuration("JWT_REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			Admin: AdminConfig{
				Username: getEnv("ADMIN_USERNAME", "admin"),
				Email:    getEnv("ADMIN_EMAIL", "admin@example.com"),
				Password: getEnv("ADMIN_PASSWORD", "adminpassword123"),
			},
		},
		Logging: loadLogging(),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Sensor-Key"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
		Liveness: LoadLivenessConfig(),
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadLivenessConfig loads the down/inactive sweep configuration
func LoadLivenessConfig() LivenessConfig {
	return LivenessConfig{
		SweepInterval:    getDuration("LIVENESS_SWEEP_INTERVAL", time.Minute),
		DownAfter:        getDuration("LIVENESS_DOWN_AFTER", 15*time.Minute),
		InactiveAfter:    getDuration("LIVENESS_INACTIVE_AFTER", time.Hour),
		DisableDetection: getBool("LIVENESS_DISABLE", false),
	}
}

// LoadMqttServiceConfig loads configuration for the MQTT ingest service
func LoadMqttServiceConfig() (*MqttServiceConfig, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(); err != nil {
		// Silently ignore .env file loading errors
	}

	config := &MqttServiceConfig{
		MQTT:       loadMQTT("snms-mqtt-service"),
		Database:   loadDatabase(),
		Influx:     loadInflux(),
		Mongo:      loadMongo(),
		Logging:    loadLogging(),
		HealthPort: getEnv("HEALTH_PORT", "8081"),
	}

	if config.MQTT.BrokerHost == "" {
		return nil, fmt.Errorf("BROKER_HOST is required")
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if c.Influx.Token == "" {
		return fmt.Errorf("INFLUX_TOKEN is required")
	}
	if c.Auth.JWTSecretKey == "change-this-secret-in-production" {
		log.Println("WARNING: Using default JWT secret key. Change JWT_SECRET_KEY in production!")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *DatabaseConfig) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetBrokerURL returns the MQTT broker URL
func (c *MQTTConfig) GetBrokerURL() string {
	scheme := "tcp"
	if c.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.BrokerHost, c.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("missing required environment variable: %s", key)
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

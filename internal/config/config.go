package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string // empty disables the MQTT publisher
	MQTTClientIDTracker string
	MQTTClientIDConsole string

	// Topics
	TopicGPS              string // fused fix
	TopicGPSPosition      string
	TopicGPSNavigation    string
	TopicGPSCourse        string
	TopicGPSSatellites    string
	TopicConnectionStatus string
	TopicRecordingStatus  string
	TopicLiveStats        string
	TopicSession          string

	// GPS
	GPSSerialPort       string
	GPSBaudRate         int
	GPSValidateChecksum bool
	GPSReconnectDelay   int // milliseconds

	// Web Server
	WebServerPort int

	// Store
	StorePath    string
	HistoryLimit int

	// InfluxDB
	InfluxURL    string // empty disables the InfluxDB sink
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// Defaults returns a Config with every optional key set. The required keys
// GPS_SERIAL_PORT and GPS_BAUD_RATE are left empty.
func Defaults() *Config {
	return &Config{
		MQTTClientIDTracker: "gps-tracker",
		MQTTClientIDConsole: "gps-tracker-console",

		TopicGPS:              "gps/fix",
		TopicGPSPosition:      "gps/position",
		TopicGPSNavigation:    "gps/navigation",
		TopicGPSCourse:        "gps/course",
		TopicGPSSatellites:    "gps/satellites",
		TopicConnectionStatus: "gps/status/connection",
		TopicRecordingStatus:  "gps/status/recording",
		TopicLiveStats:        "gps/session/live",
		TopicSession:          "gps/session",

		GPSReconnectDelay: 2000,
		WebServerPort:     8080,
		StorePath:         "gps_tracker_state.yaml",
		HistoryLimit:      50,
	}
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal() and Get().
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_GPS_POSITION":
		c.TopicGPSPosition = value
	case "TOPIC_GPS_NAVIGATION":
		c.TopicGPSNavigation = value
	case "TOPIC_GPS_COURSE":
		c.TopicGPSCourse = value
	case "TOPIC_GPS_SATELLITES":
		c.TopicGPSSatellites = value
	case "TOPIC_CONNECTION_STATUS":
		c.TopicConnectionStatus = value
	case "TOPIC_RECORDING_STATUS":
		c.TopicRecordingStatus = value
	case "TOPIC_LIVE_STATS":
		c.TopicLiveStats = value
	case "TOPIC_SESSION":
		c.TopicSession = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		if rate <= 0 {
			return fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", rate)
		}
		c.GPSBaudRate = rate
	case "GPS_VALIDATE_CHECKSUM":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_VALIDATE_CHECKSUM %q: %w", value, err)
		}
		c.GPSValidateChecksum = v
	case "GPS_RECONNECT_DELAY":
		delay, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_RECONNECT_DELAY %q: %w", value, err)
		}
		if delay < 0 {
			return fmt.Errorf("GPS_RECONNECT_DELAY must not be negative, got %d", delay)
		}
		c.GPSReconnectDelay = delay

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", port)
		}
		c.WebServerPort = port

	// Store
	case "STORE_PATH":
		c.StorePath = value
	case "HISTORY_LIMIT":
		limit, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HISTORY_LIMIT %q: %w", value, err)
		}
		if limit <= 0 {
			return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", limit)
		}
		c.HistoryLimit = limit

	// InfluxDB
	case "INFLUX_URL":
		c.InfluxURL = value
	case "INFLUX_TOKEN":
		c.InfluxToken = value
	case "INFLUX_ORG":
		c.InfluxOrg = value
	case "INFLUX_BUCKET":
		c.InfluxBucket = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.GPSBaudRate == 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required")
	}
	if c.InfluxURL != "" && c.InfluxBucket == "" {
		return fmt.Errorf("INFLUX_BUCKET is required when INFLUX_URL is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

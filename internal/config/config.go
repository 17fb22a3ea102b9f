package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type DetectionConfig struct {
	// ConfidenceThreshold is the inclusive minimum confidence a raw
	// detection needs to be persisted at all.
	ConfidenceThreshold float64
	// SeverityMedium/SeverityHigh are inclusive lower bounds for the
	// MEDIUM and HIGH severity tiers.
	SeverityMedium  float64
	SeverityHigh    float64
	CaptureCooldown time.Duration
	ArtifactDir     string
	FrameQueueSize  int
}

type RouteConfig struct {
	OriginLat *float64
	OriginLon *float64
}

type ExternalServicesConfig struct {
	ModelServerURL    string
	GeoIPEndpoints    []string
	NATSURL           string
	AlertSubject      string
	AssistantEndpoint string
	AssistantAPIKey   string
	AssistantModel    string
}

type Config struct {
	Environment      string
	HTTP             HTTPConfig
	DB               DBConfig
	Auth             AuthConfig
	Detection        DetectionConfig
	Route            RouteConfig
	ExternalServices ExternalServicesConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	v.SetDefault("DETECTION_CONFIDENCE_THRESHOLD", 0.4)
	v.SetDefault("SEVERITY_MEDIUM_THRESHOLD", 0.5)
	v.SetDefault("SEVERITY_HIGH_THRESHOLD", 0.75)
	v.SetDefault("CAPTURE_COOLDOWN_SECONDS", 5)
	v.SetDefault("ARTIFACT_DIR", "artifacts")
	v.SetDefault("FRAME_QUEUE_SIZE", 32)
	v.SetDefault("ALERT_SUBJECT", "detections.alerts")
	v.SetDefault("ASSISTANT_MODEL", "llama-3.3-70b-versatile")

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Detection: DetectionConfig{
			ConfidenceThreshold: v.GetFloat64("DETECTION_CONFIDENCE_THRESHOLD"),
			SeverityMedium:      v.GetFloat64("SEVERITY_MEDIUM_THRESHOLD"),
			SeverityHigh:        v.GetFloat64("SEVERITY_HIGH_THRESHOLD"),
			CaptureCooldown:     time.Duration(v.GetInt("CAPTURE_COOLDOWN_SECONDS")) * time.Second,
			ArtifactDir:         v.GetString("ARTIFACT_DIR"),
			FrameQueueSize:      v.GetInt("FRAME_QUEUE_SIZE"),
		},
		ExternalServices: ExternalServicesConfig{
			ModelServerURL:    v.GetString("MODEL_SERVER_URL"),
			GeoIPEndpoints:    splitList(v.GetString("GEOIP_ENDPOINTS")),
			NATSURL:           v.GetString("NATS_URL"),
			AlertSubject:      v.GetString("ALERT_SUBJECT"),
			AssistantEndpoint: v.GetString("ASSISTANT_ENDPOINT"),
			AssistantAPIKey:   v.GetString("ASSISTANT_API_KEY"),
			AssistantModel:    v.GetString("ASSISTANT_MODEL"),
		},
	}

	if v.IsSet("ROUTE_ORIGIN_LAT") && v.IsSet("ROUTE_ORIGIN_LON") {
		lat := v.GetFloat64("ROUTE_ORIGIN_LAT")
		lon := v.GetFloat64("ROUTE_ORIGIN_LON")
		cfg.Route.OriginLat = &lat
		cfg.Route.OriginLon = &lon
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if len(cfg.ExternalServices.GeoIPEndpoints) == 0 {
		cfg.ExternalServices.GeoIPEndpoints = []string{
			"https://ipapi.co/json/",
			"http://ip-api.com/json/",
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	d := cfg.Detection
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return fmt.Errorf("DETECTION_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if d.SeverityMedium >= d.SeverityHigh {
		return fmt.Errorf("SEVERITY_MEDIUM_THRESHOLD must be below SEVERITY_HIGH_THRESHOLD")
	}
	if d.CaptureCooldown <= 0 {
		return fmt.Errorf("CAPTURE_COOLDOWN_SECONDS must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

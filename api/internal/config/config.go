package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	Detector            string
	InferenceURL        string
	ModelV1             string
	ModelV2             string
	ConfidenceThreshold float64
	DetectTimeout       time.Duration
	MaxUploadBytes      int64

	CORSOrigins       []string
	ExposeErrorDetail bool

	GeminiAPIKey string
	GeminiModel  string

	TelegramBotToken string
	WebhookURL       string
	DefaultSchema    string
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getFloat(k string, def float64) float64 {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("bad %s=%q, using %v", k, v, def)
		return def
	}
	return f
}

func getBool(k string, def bool) bool {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("bad %s=%q, using %v", k, v, def)
		return def
	}
	return b
}

// getDuration accepts Go durations ("90s") or plain seconds ("90").
func getDuration(k string, def time.Duration) time.Duration {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("bad %s=%q, using %v", k, v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the service configuration from the environment.
func Load() *Config {
	maxMB := getFloat("MAX_UPLOAD_MB", 20)
	return &Config{
		Port: getEnv("PORT", "8000"),

		Detector:            getEnv("DETECTOR", "yolo"),
		InferenceURL:        getEnv("INFERENCE_URL", "http://localhost:5000"),
		ModelV1:             getEnv("MODEL_V1", "grain_physical"),
		ModelV2:             getEnv("MODEL_V2", "grain_quality_detector"),
		ConfidenceThreshold: getFloat("CONFIDENCE_THRESHOLD", 0.25),
		DetectTimeout:       getDuration("DETECT_TIMEOUT", 60*time.Second),
		MaxUploadBytes:      int64(maxMB * (1 << 20)),

		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		ExposeErrorDetail: getBool("EXPOSE_ERROR_DETAIL", true),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		DefaultSchema: getEnv("DEFAULT_SCHEMA", "v2"),
	}
}

// LoadBot is Load plus the settings only the Telegram bot needs.
func LoadBot() *Config {
	cfg := Load()
	cfg.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
	return cfg
}

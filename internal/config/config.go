package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	AppName   string
	Debug     bool

	// Exercise API (the backend that owns all business data)
	APIBaseURL      string
	APITimeout      time.Duration
	APITokenURL     string // optional: OAuth2 client-credentials
	APIClientID     string
	APIClientSecret string

	// Composer-local state (theme preferences, attempt event log)
	DBDriver string
	DBDSN    string

	SessionSecret      string
	EnableLocalAuth    bool
	InstructorUser     string
	InstructorPassHash string // bcrypt; empty means password == username (offline only)
	StudentUser        string
	StudentPassHash    string // bcrypt

	CORSOrigins []string

	// Optional: submission de-dup shared across composer replicas
	RedisAddr string

	// LTI 1.1 / Canvas (read-only, displayed; the launch itself is handled upstream)
	LTIConsumerKey    string
	LTILaunchURL      string
	LTIConfigURL      string
	CanvasBaseURL     string
	CanvasAccessToken string

	SubmitRedirectDelay time.Duration
	AttemptIdleTTL      time.Duration // attempts unseen this long are abandoned
	DefaultTheme        string

	MockAPIAddr string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	pub := os.Getenv("PUBLIC_URL")
	defLaunch := ""
	if pub != "" {
		defLaunch = strings.TrimSuffix(pub, "/") + "/lti/launch"
	}
	return Config{
		Mode:      mode,
		HTTPAddr:  addr,
		PublicURL: pub,
		AppName:   envOr("APP_NAME", "LTI Exercise Composer"),
		Debug:     envBool("DEBUG", mode == ModeOffline),

		APIBaseURL:      envOr("API_URL", "http://localhost:3000/api"),
		APITimeout:      envDuration("API_TIMEOUT", 10*time.Second),
		APITokenURL:     os.Getenv("API_TOKEN_URL"),
		APIClientID:     os.Getenv("API_CLIENT_ID"),
		APIClientSecret: os.Getenv("API_CLIENT_SECRET"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		SessionSecret:      envOr("SESSION_SECRET", "composer-dev-secret"),
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", mode == ModeOffline),
		InstructorUser:     envOr("INSTRUCTOR_USER", "instructor"),
		InstructorPassHash: os.Getenv("INSTRUCTOR_PASS_HASH"),
		StudentUser:        envOr("STUDENT_USER", "student"),
		StudentPassHash:    os.Getenv("STUDENT_PASS_HASH"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		LTIConsumerKey:    os.Getenv("LTI_CONSUMER_KEY"),
		LTILaunchURL:      envOr("LTI_LAUNCH_URL", defLaunch),
		LTIConfigURL:      os.Getenv("LTI_CONFIG_URL"),
		CanvasBaseURL:     os.Getenv("CANVAS_BASE_URL"),
		CanvasAccessToken: os.Getenv("CANVAS_ACCESS_TOKEN"),

		SubmitRedirectDelay: envDuration("SUBMIT_REDIRECT_DELAY", 2*time.Second),
		AttemptIdleTTL:      envDuration("ATTEMPT_IDLE_TTL", 30*time.Minute),
		DefaultTheme:        envOr("DEFAULT_THEME", "light"),

		MockAPIAddr: envOr("MOCKAPI_ADDR", ":3000"),
	}
}

// OAuthEnabled reports whether calls to the exercise API use client credentials.
func (c Config) OAuthEnabled() bool {
	return c.APITokenURL != "" && c.APIClientID != ""
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

// envDuration accepts Go durations ("1500ms") or plain seconds ("10").
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

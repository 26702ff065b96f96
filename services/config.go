package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Session   SessionConfig
	Routes    RouteConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret string
}

// SessionConfig bounds the session bootstrap paths. The safety ceiling is the
// last-resort liveness bound: loading settles by then no matter what stalls.
type SessionConfig struct {
	CheckTimeout   time.Duration
	ProfileTimeout time.Duration
	SafetyCeiling  time.Duration
}

// RouteConfig is the role-based navigation contract: the public route
// allow-list and the three role home destinations.
type RouteConfig struct {
	PublicPaths string // comma-separated
	LoginPath   string
	AdminHome   string
	TrainerHome string
	StudentHome string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("session.check_timeout", "3s")
	viper.SetDefault("session.profile_timeout", "3s")
	viper.SetDefault("session.safety_ceiling", "8s")
	viper.SetDefault("routes.public_paths", "/login,/signup,/forgot-password,/reset-password")
	viper.SetDefault("routes.login_path", "/login")
	viper.SetDefault("routes.admin_home", "/admin")
	viper.SetDefault("routes.trainer_home", "/trainer")
	viper.SetDefault("routes.student_home", "/student")
	viper.SetDefault("websocket.allowed_origins", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("session.check_timeout", "SESSION_CHECK_TIMEOUT")
	viper.BindEnv("session.profile_timeout", "SESSION_PROFILE_TIMEOUT")
	viper.BindEnv("session.safety_ceiling", "SESSION_SAFETY_CEILING")
	viper.BindEnv("routes.public_paths", "ROUTES_PUBLIC_PATHS")
	viper.BindEnv("routes.login_path", "ROUTES_LOGIN_PATH")
	viper.BindEnv("routes.admin_home", "ROUTES_ADMIN_HOME")
	viper.BindEnv("routes.trainer_home", "ROUTES_TRAINER_HOME")
	viper.BindEnv("routes.student_home", "ROUTES_STUDENT_HOME")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Session: SessionConfig{
			CheckTimeout:   viper.GetDuration("session.check_timeout"),
			ProfileTimeout: viper.GetDuration("session.profile_timeout"),
			SafetyCeiling:  viper.GetDuration("session.safety_ceiling"),
		},
		Routes: RouteConfig{
			PublicPaths: viper.GetString("routes.public_paths"),
			LoginPath:   viper.GetString("routes.login_path"),
			AdminHome:   viper.GetString("routes.admin_home"),
			TrainerHome: viper.GetString("routes.trainer_home"),
			StudentHome: viper.GetString("routes.student_home"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}

// RoutePolicy builds the navigation policy from route configuration.
func (c *Config) RoutePolicy() RoutePolicy {
	var public []string
	for _, p := range strings.Split(c.Routes.PublicPaths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			public = append(public, p)
		}
	}
	return RoutePolicy{
		Public:      public,
		Login:       c.Routes.LoginPath,
		AdminHome:   c.Routes.AdminHome,
		TrainerHome: c.Routes.TrainerHome,
		StudentHome: c.Routes.StudentHome,
	}
}

/*
Package config loads server configuration.

PURPOSE:
  Every setting is a command-line flag whose default comes from the
  environment, so the same binary runs from a shell (flags) or a
  container (env).

SETTINGS:
  -port                 PLANNER_PORT                HTTP port (8080)
  -db                   PLANNER_DB_PATH             SQLite path (planner.db)
  -service-key          PLANNER_SERVICE_KEY         Bearer key for /api/reconcile
  -timezone             PLANNER_TIMEZONE            Zone defining "today" (Asia/Tehran)
  -calendar             PLANNER_CALENDAR            gregorian | jalali
  -reconcile-interval   PLANNER_RECONCILE_INTERVAL  Scheduler tick (1h)
  -scheduler            PLANNER_SCHEDULER           Run the in-process scheduler (true)
  -log-level            PLANNER_LOG_LEVEL           debug | info | warn | error
  -log-format           PLANNER_LOG_FORMAT          console | json
  -cors-origins         PLANNER_CORS_ORIGINS        Comma-separated origins

An empty service key disables the service routes.
*/
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/warp/life-planner/logger"
	"github.com/warp/life-planner/routine"
)

type Config struct {
	Port              int
	DBPath            string
	ServiceKey        string
	Timezone          string
	Location          *time.Location
	Calendar          routine.Calendar
	ReconcileInterval time.Duration
	SchedulerEnabled  bool
	LogLevel          string
	LogFormat         logger.Format
	CORSOrigins       []string
}

// Load parses args (without the program name). getenv supplies flag
// defaults; pass os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	port, err := strconv.Atoi(env("PLANNER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("PLANNER_PORT: %w", err)
	}
	interval, err := time.ParseDuration(env("PLANNER_RECONCILE_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("PLANNER_RECONCILE_INTERVAL: %w", err)
	}
	scheduler, err := strconv.ParseBool(env("PLANNER_SCHEDULER", "true"))
	if err != nil {
		return nil, fmt.Errorf("PLANNER_SCHEDULER: %w", err)
	}

	cfg := &Config{}
	var calendar, format, origins string

	fs := flag.NewFlagSet("planner", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", env("PLANNER_DB_PATH", "planner.db"), "SQLite database path (\":memory:\" for in-memory)")
	fs.StringVar(&cfg.ServiceKey, "service-key", env("PLANNER_SERVICE_KEY", ""), "Bearer key for service routes")
	fs.StringVar(&cfg.Timezone, "timezone", env("PLANNER_TIMEZONE", "Asia/Tehran"), "IANA zone that defines the reconciler's day")
	fs.StringVar(&calendar, "calendar", env("PLANNER_CALENDAR", string(routine.CalendarGregorian)), "Calendar for monthly jobs: gregorian or jalali")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", interval, "How often the scheduler checks for a new day")
	fs.BoolVar(&cfg.SchedulerEnabled, "scheduler", scheduler, "Run the in-process reconciliation scheduler")
	fs.StringVar(&cfg.LogLevel, "log-level", env("PLANNER_LOG_LEVEL", "info"), "Log level")
	fs.StringVar(&format, "log-format", env("PLANNER_LOG_FORMAT", string(logger.FormatConsole)), "Log format: console or json")
	fs.StringVar(&origins, "cors-origins", env("PLANNER_CORS_ORIGINS", "*"), "Comma-separated allowed CORS origins")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Calendar = routine.Calendar(strings.ToLower(calendar))
	cfg.LogFormat = logger.Format(strings.ToLower(format))
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	if !c.Calendar.Valid() {
		return fmt.Errorf("calendar %q: must be gregorian or jalali", c.Calendar)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	if c.LogFormat != logger.FormatConsole && c.LogFormat != logger.FormatJSON {
		return fmt.Errorf("log format %q: must be console or json", c.LogFormat)
	}
	return nil
}

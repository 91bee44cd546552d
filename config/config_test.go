package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/life-planner/logger"
	"github.com/warp/life-planner/routine"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "planner.db", cfg.DBPath)
	assert.Equal(t, "Asia/Tehran", cfg.Location.String())
	assert.Equal(t, routine.CalendarGregorian, cfg.Calendar)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, logger.FormatConsole, cfg.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.ServiceKey)
}

func TestLoad_EnvThenFlagsOverride(t *testing.T) {
	env := envOf(map[string]string{
		"PLANNER_PORT":         "9090",
		"PLANNER_CALENDAR":     "Jalali",
		"PLANNER_SERVICE_KEY":  "secret",
		"PLANNER_CORS_ORIGINS": "https://a.example, https://b.example",
		"PLANNER_SCHEDULER":    "false",
	})

	cfg, err := Load([]string{"-port", "3000", "-timezone", "UTC"}, env)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, routine.CalendarJalali, cfg.Calendar)
	assert.Equal(t, "secret", cfg.ServiceKey)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"bad port env", nil, map[string]string{"PLANNER_PORT": "http"}},
		{"port range", []string{"-port", "70000"}, nil},
		{"timezone", []string{"-timezone", "Mars/Olympus"}, nil},
		{"calendar", []string{"-calendar", "lunar"}, nil},
		{"interval", []string{"-reconcile-interval", "0s"}, nil},
		{"log format", []string{"-log-format", "xml"}, nil},
		{"unknown flag", []string{"-nope"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.args, envOf(tc.env))
			assert.Error(t, err)
		})
	}
}

package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/life-planner/store/sqlite"
)

func TestAccessLog_RequestLoggerReachesReconciler(t *testing.T) {
	// GIVEN: A router logging JSON into a buffer, with silent handler and reconciler loggers
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	h := NewHandler(store, Options{Location: time.UTC, Log: zerolog.Nop()})
	h.Now = func() time.Time { return testNow }
	var buf bytes.Buffer
	router := NewRouter(h, RouterOptions{ServiceKey: testServiceKey, Log: zerolog.New(&buf)})

	// WHEN: Triggering a reconciliation with a request id
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+testServiceKey)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The reconciler's summary line and the access line carry the request id
	byMessage := map[string]map[string]any{}
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		msg, _ := line["message"].(string)
		byMessage[msg] = line
	}
	require.Contains(t, byMessage, "reconcile: run completed")
	require.Contains(t, byMessage, "HTTP request")
	assert.Equal(t, "req-42", byMessage["reconcile: run completed"]["request_id"])
	assert.Equal(t, "req-42", byMessage["HTTP request"]["request_id"])
}

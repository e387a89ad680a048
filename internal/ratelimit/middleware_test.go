package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func request(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/price", nil)
	req.RemoteAddr = remote
	return req
}

func TestPolicyRejectsOverLimitWithJSONBody(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fixed, err := NewFixedWindow(client, "ratelimit")
	require.NoError(t, err)
	h := Policy{Name: "login", Limiter: fixed, Limit: 2, Window: time.Minute}.Middleware(okHandler())

	send := func(addr string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(addr))
		return rec
	}

	require.Equal(t, http.StatusNoContent, send("10.0.0.1:5000").Code)
	first := send("10.0.0.1:5001")
	require.Equal(t, http.StatusNoContent, first.Code)
	require.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	rec := send("10.0.0.1:5002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEqual(t, "0", rec.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, CodeRateLimited, body.Error.Code)
	require.Equal(t, "login", body.Error.Details["policy"])

	require.Equal(t, http.StatusNoContent, send("10.0.0.2:5000").Code, "other clients keep their own budget")
}

func TestPoliciesDoNotShareBudgets(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := SlidingWindow{Client: client, Prefix: "ratelimit:"}
	quote := Policy{Name: "quote", Limiter: limiter, Limit: 1, Window: time.Minute}.Middleware(okHandler())
	login := Policy{Name: "login", Limiter: limiter, Limit: 1, Window: time.Minute}.Middleware(okHandler())

	rec := httptest.NewRecorder()
	quote.ServeHTTP(rec, request("192.0.2.7:1"))
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = httptest.NewRecorder()
	login.ServeHTTP(rec, request("192.0.2.7:1"))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, mr.Exists("ratelimit:quote:192.0.2.7"))
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, time.Duration, int) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errors.New("redis: connection refused")
}

func TestPolicyFailsOpen(t *testing.T) {
	var reported error
	h := Policy{Name: "quote", Limiter: brokenLimiter{}, Limit: 1, Window: time.Minute, OnError: func(err error) { reported = err }}.
		Middleware(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.1:1"))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Error(t, reported)
	require.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestPolicyWithoutLimiterPassesThrough(t *testing.T) {
	h := Policy{Name: "quote", Limit: 1, Window: time.Second}.Middleware(okHandler())
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("10.0.0.1:1"))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestClientKey(t *testing.T) {
	cases := map[string]string{
		"203.0.113.9:443":             "203.0.113.9",
		"[2001:db8:1:2:aaaa::1]:8080": "2001:db8:1:2::/64",
		"[::ffff:198.51.100.4]:9000":  "198.51.100.4",
		"198.51.100.5":                "198.51.100.5",
		"not-an-address":              "not-an-address",
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		require.Equal(t, want, ClientKey(req), remote)
	}
}

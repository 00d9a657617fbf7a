package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"metal-pricer/internal/config"
	"metal-pricer/internal/logging"
)

const throttledBody = `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`

type gqlCall struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type fakeShopify struct {
	t      *testing.T
	mu     sync.Mutex
	calls  []gqlCall
	server *httptest.Server
	handle func(n int, call gqlCall) (int, string)
}

func newFakeShopify(t *testing.T, handle func(n int, call gqlCall) (int, string)) *fakeShopify {
	t.Helper()
	f := &fakeShopify{t: t, handle: handle}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/api/2024-07/graphql.json" || r.Header.Get("X-Shopify-Access-Token") != "shpat_test" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var call gqlCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		n := len(f.calls)
		f.mu.Unlock()

		status, body := f.handle(n, call)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeShopify) Calls() []gqlCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gqlCall(nil), f.calls...)
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return nil
}

func newTestClient(t *testing.T, f *fakeShopify) (*Client, *observer.ObservedLogs, *recordedSleeps) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	sleeps := &recordedSleeps{}
	client := NewClient(config.ShopifyConfig{
		ShopDomain: f.server.URL,
		Token:      "shpat_test",
		APIVer:     "2024-07",
	}, f.server.Client(), logging.NewLogger(zap.New(core)), WithRetryPolicy(RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Sleep:       sleeps.sleep,
	}))
	return client, logs, sleeps
}

func warnings(logs *observer.ObservedLogs, contains string) int {
	n := 0
	for _, e := range logs.FilterLevelExact(zapcore.WarnLevel).All() {
		if strings.Contains(e.Message, contains) {
			n++
		}
	}
	return n
}

func ok(data string) (int, string) {
	return http.StatusOK, `{"data":` + data + `}`
}

func requireVariable(t *testing.T, call gqlCall, key string) any {
	t.Helper()
	v, found := call.Variables[key]
	require.True(t, found, "variable %s missing", key)
	return v
}

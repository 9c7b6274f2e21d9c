package binanceclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const hourMs int64 = 3600000

var startMs = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// klineServer serves n hourly klines starting at startMs and records the
// requests it receives.
func klineServer(t *testing.T, n int) (*httptest.Server, *[]string) {
	t.Helper()
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		requests = append(requests, q.Get("startTime"))
		from, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
		to, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		var rows []string
		for i := 0; i < n && len(rows) < limit; i++ {
			open := startMs + int64(i)*hourMs
			if open < from || open > to {
				continue
			}
			price := 100 + i
			rows = append(rows, fmt.Sprintf(`[%d,"%d","%d","%d","%d.5","10",%d,"1000",5,"5","500","0"]`,
				open, price, price+2, price-1, price, open+hourMs-1))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "["+strings.Join(rows, ",")+"]")
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(t *testing.T, baseURL string, pageSize int) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, Logger: &mockLogger{}, PageSize: pageSize})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_BaseURL(t *testing.T) {
	c, err := New(Config{Logger: &mockLogger{}, UseTestnet: true})
	require.NoError(t, err)
	assert.Equal(t, baseURLTestnet, c.futuresClient.BaseURL)
	assert.Equal(t, maxKlinesPerRequest, c.pageSize)

	c, err = New(Config{Logger: &mockLogger{}, PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, baseURLProduction, c.futuresClient.BaseURL)
	assert.Equal(t, maxKlinesPerRequest, c.pageSize)
}

func TestFetchBars_Pages(t *testing.T) {
	srv, requests := klineServer(t, 5)
	c := newTestClient(t, srv.URL, 2)

	start := time.UnixMilli(startMs)
	bars, err := c.FetchBars(context.Background(), "BTCUSDT", domain.Hour, start, start.Add(10*time.Hour))
	require.NoError(t, err)

	require.Len(t, bars, 5)
	for i, b := range bars {
		assert.Equal(t, startMs+int64(i)*hourMs, b.Time)
	}
	assert.Equal(t, domain.Bar{Time: startMs, Open: 100, High: 102, Low: 99, Close: 100.5, Volume: 10}, bars[0])
	assert.Len(t, *requests, 3, "two full pages and a short one")
	assert.Equal(t, strconv.FormatInt(startMs+2*hourMs, 10), (*requests)[1])
}

func TestFetchBars_RespectsEnd(t *testing.T) {
	srv, _ := klineServer(t, 10)
	c := newTestClient(t, srv.URL, 0)

	start := time.UnixMilli(startMs)
	bars, err := c.FetchBars(context.Background(), "BTCUSDT", domain.Hour, start, start.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, bars, 4)
}

func TestFetchBars_InvalidRange(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", 0)
	start := time.UnixMilli(startMs)
	_, err := c.FetchBars(context.Background(), "BTCUSDT", domain.Hour, start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestFetchBars_APIErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr error
	}{
		{name: "rate limited", code: -1003, wantErr: ports.ErrRateLimited},
		{name: "bad symbol", code: -1121, wantErr: ports.ErrInvalidRequest},
		{name: "bad key", code: -2015, wantErr: ports.ErrAuthenticationFailed},
		{name: "unmapped", code: -9999, wantErr: ports.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, `{"code":%d,"msg":"rejected"}`, tt.code)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, 0)
			start := time.UnixMilli(startMs)
			_, err := c.FetchBars(context.Background(), "BTCUSDT", domain.Hour, start, start.Add(time.Hour))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTranslateBinanceKline(t *testing.T) {
	_, err := translateBinanceKline(nil)
	assert.Error(t, err)
}

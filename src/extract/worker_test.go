package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/snapshot"
)

func testWorker() *Worker {
	w := NewWorker(snapshot.DefaultPolicy(), &http.Client{Timeout: 2 * time.Second})
	w.backoff = time.Millisecond
	return w
}

func TestFetchNormalizesHTML(t *testing.T) {
	page := `<html><head><title> Annual  Report </title>
<script>var x = 1;</script></head>
<body><h1>Results</h1><p>Revenue grew <b>12%</b> in 2024.</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	ev, err := testWorker().Fetch(context.Background(), srv.URL+"/report")
	require.NoError(t, err)

	assert.Equal(t, "Annual Report", ev.Title)
	assert.Contains(t, ev.Content, "Revenue grew 12% in 2024.")
	assert.NotContains(t, ev.Content, "<p>")
	assert.NotContains(t, ev.Content, "var x")
	assert.Equal(t, evidence.HashContent([]byte(page)), ev.ContentHash)
	assert.Equal(t, evidence.SourceSecondary, ev.SourceType)
	assert.WithinDuration(t, time.Now().UTC(), ev.AccessedAt, 5*time.Second)
	assert.Equal(t, 0, ev.Revision)
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price": 42.5, "symbol": "ACME"}`))
	}))
	defer srv.Close()

	ev, err := testWorker().Fetch(context.Background(), srv.URL+"/quote")
	require.NoError(t, err)
	assert.Contains(t, ev.Content, `"price": 42.5`)
	assert.Contains(t, ev.Content, `"symbol": "ACME"`)
}

func TestFetchDeadOn404(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testWorker().Fetch(context.Background(), srv.URL+"/gone")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindDead, fe.Kind)
	assert.Equal(t, 404, fe.Status)
	assert.True(t, fe.Terminal())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestFetchUnreachableExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testWorker().Fetch(context.Background(), srv.URL+"/flaky")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindUnreachable, fe.Kind)
	assert.False(t, fe.Terminal())
	assert.EqualValues(t, defaultAttempts, atomic.LoadInt32(&calls))
}

func TestFetchRecoversWithinRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>finally up</p></body></html>"))
	}))
	defer srv.Close()

	ev, err := testWorker().Fetch(context.Background(), srv.URL+"/slow-start")
	require.NoError(t, err)
	assert.Contains(t, ev.Content, "finally up")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testWorker().Fetch(context.Background(), url)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindUnreachable, fe.Kind)
	assert.Error(t, errors.Unwrap(fe))
}

func TestFetchMalformed(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"binary": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte{0xff, 0xfe, 0x00, 0x80, 0x81})
		},
		"empty": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
		},
		"pdf": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7 not really"))
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"truncated":`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			_, err := testWorker().Fetch(context.Background(), srv.URL)
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, KindMalformed, fe.Kind)
			assert.True(t, fe.Terminal())
		})
	}
}

func TestProbeReturnsRawHash(t *testing.T) {
	body := []byte("<html><body>v2</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	hash, err := testWorker().Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, evidence.HashContent(body), hash)
}

func TestProbeDead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	_, err := testWorker().Probe(context.Background(), srv.URL)
	assert.Equal(t, KindDead, KindOf(err))
}

func TestKindOfUnknownError(t *testing.T) {
	assert.Equal(t, KindUnreachable, KindOf(errors.New("anything")))
}

package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	body := []byte(`{"id":"r1"}`)
	sig := Sign("s3cret", body)
	assert.Len(t, sig, 64)
	assert.True(t, Verify("s3cret", body, sig))
	assert.False(t, Verify("other", body, sig))
	assert.False(t, Verify("s3cret", body, "zz"))
}

func TestNotifyRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, Verify("k", body, r.Header.Get(SignatureHeader)))
		assert.Equal(t, "run.succeeded", r.Header.Get("X-Event-Type"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "k", 5, zerolog.Nop())
	n.BaseDelay = time.Millisecond
	require.NoError(t, n.Notify(context.Background(), "run.succeeded", []byte(`{"id":"r1"}`)))
	assert.EqualValues(t, 3, calls.Load())
}

func TestNotifyGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", 2, zerolog.Nop())
	n.BaseDelay = time.Millisecond
	err := n.Notify(context.Background(), "run.failed", []byte(`{}`))
	assert.ErrorContains(t, err, "giving up after 2 attempts")
	assert.EqualValues(t, 2, calls.Load())
}

func TestNotifyStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", 5, zerolog.Nop())
	n.BaseDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Notify(ctx, "run.failed", nil), context.DeadlineExceeded)
}

func TestBackoffIsCapped(t *testing.T) {
	n := &Notifier{BaseDelay: time.Second}
	assert.Equal(t, time.Second, n.backoff(0))
	assert.Equal(t, 4*time.Second, n.backoff(2))
	assert.Equal(t, 1024*time.Second, n.backoff(50))
}

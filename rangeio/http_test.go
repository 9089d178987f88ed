package rangeio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityjson/flatcitybuf/attrindex/errs"
)

func newRangeServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
			return
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Write(body)
			return
		}

		spec := strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.SplitN(spec, "-", 2)
		start, err := strconv.Atoi(parts[0])
		require.NoError(t, err)

		end, err := strconv.Atoi(parts[1])
		require.NoError(t, err)

		if end >= len(body) {
			end = len(body) - 1
		}

		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[start : end+1])
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPClient_ReadRange_SingleFetch(t *testing.T) {
	body := []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	srv := newRangeServer(t, body)

	c := NewHTTPClient(srv.URL, WithWindowSize(8))
	defer c.Close()

	got, err := c.ReadRange(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, body[2:7], got)
}

func TestHTTPClient_ReadRange_ServedFromBufferedWindow(t *testing.T) {
	body := []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	hits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[0:16])
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithWindowSize(16))
	defer c.Close()

	_, err := c.ReadRange(context.Background(), 0, 4)
	require.NoError(t, err)

	_, err = c.ReadRange(context.Background(), 4, 4)
	require.NoError(t, err)

	assert.Equal(t, 1, hits, "second read should be served from the buffered window, no second fetch")
}

func TestHTTPClient_Size(t *testing.T) {
	body := []byte("hello world")
	srv := newRangeServer(t, body)

	c := NewHTTPClient(srv.URL)
	defer c.Close()

	size, err := c.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), size)
}

func TestHTTPClient_ReadRange_ErrorStatusIsErrIo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithBackOff(backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 0)))
	defer c.Close()

	_, err := c.ReadRange(context.Background(), 0, 4)
	assert.ErrorIs(t, err, errs.ErrIo)
}

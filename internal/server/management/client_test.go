package management

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseops/pulseguardian/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	return NewClient(srv.URL, "guest", "guest", logger)
}

func TestPathEscaping_SlashStaysOneSegment(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"name":"exchange/queue/1","vhost":"/","consumers":0}`))
	})

	_, err := c.Queue(context.Background(), "/", "exchange/queue/1")
	require.NoError(t, err)

	// "/api/queues/<vhost>/<name>": exactly four separators, nothing split.
	assert.Equal(t, "/api/queues/%2F/exchange%2Fqueue%2F1", gotPath)
	assert.Equal(t, 4, strings.Count(gotPath, "/"))
}

func TestCall_BasicAuthAndContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "guest", user)
		assert.Equal(t, "guest", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	})
	require.NoError(t, c.DeleteUser(context.Background(), "worker"))
}

func TestCall_EmptyBodyIsNoContentSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	err := c.CreateUser(context.Background(), "worker", "abc123", DefaultUserTags)
	require.NoError(t, err)
}

func TestCall_UnparsableBodyReturnsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("<html>401 Unauthorized</html>"))
	})

	err := c.DeleteQueue(context.Background(), "/", "some-queue")
	require.Error(t, err)

	var mgmtErr *Error
	require.ErrorAs(t, err, &mgmtErr)
	assert.Equal(t, http.MethodDelete, mgmtErr.Method)
	assert.Contains(t, mgmtErr.Path, "queues/%2F/some-queue")
	assert.Contains(t, mgmtErr.Error(), "401 Unauthorized")
}

func TestUser_MissingUserCarriesErrorKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Object Not Found","reason":"Not Found"}`))
	})

	u, err := c.User(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, "Object Not Found", u.Error)
}

func TestQueueOwner_NoConsumers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"idle","vhost":"/","consumers":0}`))
	})

	owner, err := c.QueueOwner(context.Background(), Queue{Name: "idle", Vhost: "/"})
	require.NoError(t, err)
	assert.Equal(t, "", owner)
}

func TestQueueOwner_FirstConsumerWins(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/queues/"):
			w.Write([]byte(`{
				"name": "busy", "vhost": "/", "consumers": 2,
				"consumer_details": [
					{"channel_details": {"name": "chan-1"}},
					{"channel_details": {"name": "chan-2"}}
				]
			}`))
		case r.URL.EscapedPath() == "/api/channels/chan-1":
			w.Write([]byte(`{"name":"chan-1","user":"worker-a"}`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
		}
	})

	owner, err := c.QueueOwner(context.Background(), Queue{Name: "busy", Vhost: "/"})
	require.NoError(t, err)
	assert.Equal(t, "worker-a", owner)
}

func TestQueues_VhostOptional(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		w.Write([]byte(`[{"name":"q1","vhost":"/"}]`))
	})

	_, err := c.Queues(context.Background(), "")
	require.NoError(t, err)
	_, err = c.Queues(context.Background(), "/")
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/queues", "/api/queues/%2F"}, paths)
}

func TestDeleteAllQueues_BestEffortIteration(t *testing.T) {
	var deleted []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(`[{"name":"q1","vhost":"/"},{"name":"q2","vhost":"/"}]`))
		case r.Method == http.MethodDelete:
			deleted = append(deleted, r.URL.EscapedPath())
		}
	})

	require.NoError(t, c.DeleteAllQueues(context.Background()))
	assert.Equal(t, []string{"/api/queues/%2F/q1", "/api/queues/%2F/q2"}, deleted)
}

func TestCall_UnreachableBrokerIsTransportError(t *testing.T) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	c := NewClient("http://127.0.0.1:1", "guest", "guest", logger)

	_, err := c.User(context.Background(), "worker")
	require.Error(t, err)

	var mgmtErr *Error
	assert.False(t, strings.Contains(err.Error(), "Received:"))
	assert.NotErrorAs(t, err, &mgmtErr)
}

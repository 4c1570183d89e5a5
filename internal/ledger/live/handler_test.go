package live

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

type stubRoster struct {
	known   domain.ListID
	entries []*models.Entry
}

func (s *stubRoster) ListByList(_ context.Context, listID domain.ListID) ([]*models.Entry, error) {
	if listID != s.known {
		return nil, dErrors.New(dErrors.CodeNotFound, "attendance list not found")
	}
	return s.entries, nil
}

func newLiveServer(t *testing.T, hub *Hub, roster Roster, origins []string) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(hub, roster, slog.New(slog.NewTextHandler(io.Discard, nil)), origins).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, listID domain.ListID) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/attendance-lists/" + listID.String() + "/live"
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandleLive(t *testing.T) {
	listID := domain.NewListID()
	existing := entryFor(listID, 1)
	existing.Name = "Ana"

	t.Run("sends snapshot then new entries", func(t *testing.T) {
		hub := NewHub()
		srv := newLiveServer(t, hub, &stubRoster{known: listID, entries: []*models.Entry{existing}}, nil)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, listID), nil)
		require.NoError(t, err)
		defer conn.Close()

		snapshot := readMessage(t, conn)
		assert.Equal(t, MessageSnapshot, snapshot.Type)
		require.Len(t, snapshot.Entries, 1)
		assert.Equal(t, "Ana", snapshot.Entries[0].Name)

		require.Eventually(t, func() bool { return hub.Subscribers(listID) == 1 }, time.Second, 10*time.Millisecond)
		require.NoError(t, hub.Publish(context.Background(), entryFor(listID, 2)))

		next := readMessage(t, conn)
		assert.Equal(t, MessageEntry, next.Type)
		require.NotNil(t, next.Entry)
		assert.Equal(t, 2, next.Entry.RowNumber)
	})

	t.Run("unknown list is rejected before upgrade", func(t *testing.T) {
		hub := NewHub()
		srv := newLiveServer(t, hub, &stubRoster{known: listID}, nil)

		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, domain.NewListID()), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, 0, hub.Subscribers(listID))
	})

	t.Run("disconnect releases the subscription", func(t *testing.T) {
		hub := NewHub()
		srv := newLiveServer(t, hub, &stubRoster{known: listID}, nil)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, listID), nil)
		require.NoError(t, err)
		readMessage(t, conn)
		require.Eventually(t, func() bool { return hub.Subscribers(listID) == 1 }, time.Second, 10*time.Millisecond)

		require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
		conn.Close()

		assert.Eventually(t, func() bool { return hub.Subscribers(listID) == 0 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("foreign origin is refused", func(t *testing.T) {
		hub := NewHub()
		srv := newLiveServer(t, hub, &stubRoster{known: listID}, []string{"https://rollcall.example"})

		header := http.Header{"Origin": []string{"https://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, listID), header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

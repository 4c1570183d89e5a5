package live

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Subscriber hands out per-list entry feeds.
type Subscriber interface {
	Subscribe(listID domain.ListID) (<-chan *models.Entry, func(), error)
}

// Roster returns the current entries of a list, failing with not_found for
// unknown lists.
type Roster interface {
	ListByList(ctx context.Context, listID domain.ListID) ([]*models.Entry, error)
}

// Message is the websocket frame. A snapshot is sent once on connect and
// every later frame carries a single new entry.
type Message struct {
	Type    string          `json:"type"`
	Entries []*models.Entry `json:"entries,omitempty"`
	Entry   *models.Entry   `json:"entry,omitempty"`
}

const (
	MessageSnapshot = "snapshot"
	MessageEntry    = "entry"
)

type Handler struct {
	subscriber Subscriber
	roster     Roster
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewHandler builds the live roster endpoint. An empty allowedOrigins, or
// one containing "*", accepts any origin.
func NewHandler(subscriber Subscriber, roster Roster, logger *slog.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		subscriber: subscriber,
		roster:     roster,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/attendance-lists/{id}/live", h.HandleLive)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	listID, err := domain.ParseListID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Subscribe before reading the snapshot so nothing recorded in between
	// is lost. Clients may see an entry twice and dedupe by row number.
	feed, cancel, err := h.subscriber.Subscribe(listID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to subscribe to roster feed",
			"request_id", requestID,
			"list_id", listID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	defer cancel()

	snapshot, err := h.roster.ListByList(ctx, listID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"request_id", requestID,
			"error", err,
		)
		return
	}
	defer conn.Close()

	h.logger.InfoContext(ctx, "roster viewer connected",
		"request_id", requestID,
		"list_id", listID.String(),
	)

	closed := make(chan struct{})
	go h.readUntilClosed(conn, closed)

	if err := writeMessage(conn, Message{Type: MessageSnapshot, Entries: snapshot}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.InfoContext(ctx, "roster viewer disconnected",
				"request_id", requestID,
				"list_id", listID.String(),
			)
			return
		case entry := <-feed:
			if err := writeMessage(conn, Message{Type: MessageEntry, Entry: entry}); err != nil {
				h.logger.WarnContext(ctx, "failed to push roster entry",
					"request_id", requestID,
					"list_id", listID.String(),
					"error", err,
				)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so control messages are processed
// and signals when the peer goes away.
func (h *Handler) readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("roster viewer closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// Package ws implements the WebSocket adapter: one live view session per
// connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/domain/view"
	"github.com/Strob0t/sitecms/internal/middleware"
	"github.com/Strob0t/sitecms/internal/service"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// IdentityResolver turns the ?token= parameter into an identity, signing
// in anonymously when it is empty.
type IdentityResolver interface {
	Resolve(token string) (*user.Identity, string, error)
}

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub accepts view sessions and tracks the open connections.
type Hub struct {
	watcher     service.Watcher
	auth        IdentityResolver
	authEnabled bool
	defaultSite string

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a new WebSocket hub. With authEnabled false every session
// runs as middleware.DefaultAdmin, matching the HTTP API.
func NewHub(watcher service.Watcher, auth IdentityResolver, defaultSite string, authEnabled bool) *Hub {
	return &Hub{
		watcher:     watcher,
		auth:        auth,
		authEnabled: authEnabled,
		defaultSite: defaultSite,
		conns:       make(map[*conn]struct{}),
	}
}

// HandleWS upgrades the connection and serves one view session until the
// client disconnects. The initial view comes from ?siteId=&view=&tab=.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	initial := view.FromQuery(q, h.defaultSite)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}
	h.add(c)
	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()

	slog.Info("websocket connected", "remote", r.RemoteAddr, "site_id", initial.SiteID)

	s := &session{ws: ws, ctx: ctx}
	id, issued, err := h.identify(q.Get("token"))
	if err != nil {
		s.sendError(err, "")
		_ = ws.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}
	if err := s.send(EventIdentity, IdentityEvent{
		UserID:      id.UserID,
		Role:        id.Role,
		Anonymous:   id.Anonymous,
		Ready:       true,
		AccessToken: issued,
	}); err != nil {
		return
	}

	router := service.NewViewRouter(h.watcher, id, h.defaultSite, s.pushSnapshot)
	router.OnEnter(s.announce)
	defer router.Close()
	defer cancel() // unblocks pending snapshot writes before router.Close waits

	s.navigate(router, initial)
	s.readLoop(router)
}

// identify resolves the session identity and returns the access token to
// hand back when a new one was issued.
func (h *Hub) identify(token string) (*user.Identity, string, error) {
	if !h.authEnabled {
		admin := middleware.DefaultAdmin
		return &admin, "", nil
	}
	id, resolved, err := h.auth.Resolve(token)
	if err != nil {
		return nil, "", err
	}
	if resolved == token {
		resolved = ""
	}
	return id, resolved, nil
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll ends every session.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.cancel()
	}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
}

// session is the server side of one connection.
type session struct {
	ws  *websocket.Conn
	ctx context.Context
}

func (s *session) readLoop(router *service.ViewRouter) {
	for {
		var msg Message
		if err := wsjson.Read(s.ctx, s.ws, &msg); err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) && s.ctx.Err() == nil {
				slog.Debug("websocket read failed", "error", err)
			}
			return
		}

		switch msg.Type {
		case EventNavigate:
			var cmd NavigateCommand
			if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
				s.sendError(errors.New("malformed navigate payload"), "")
				continue
			}
			s.navigate(router, cmd.State())
		default:
			s.sendError(errors.New("unknown message type "+msg.Type), "")
		}
	}
}

// navigate reports failures only; the view event is sent by announce once
// the router accepts the state and before any of its streams open.
func (s *session) navigate(router *service.ViewRouter, next view.State) {
	if _, err := router.Navigate(s.ctx, next); err != nil {
		s.sendError(err, "")
	}
}

func (s *session) announce(st view.State) {
	_ = s.send(EventView, ViewEvent{State: st, Location: "?" + st.Query().Encode()})
}

func (s *session) pushSnapshot(st view.Stream, snap *service.Snapshot, err error) {
	if err != nil {
		s.sendError(err, st.Name())
		return
	}
	_ = s.send(EventSnapshot, SnapshotEvent{
		Stream: st.Name(),
		SiteID: st.SiteID,
		Order:  st.Order,
		Items:  snap.Items(),
		Count:  snap.Count(),
	})
}

func (s *session) sendError(err error, stream string) {
	_ = s.send(EventError, ErrorEvent{Message: err.Error(), Stream: stream})
}

// send writes one envelope. Writes are safe from the snapshot goroutines
// and the read loop at once.
func (s *session) send(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, s.ws, Message{Type: eventType, Payload: data}); err != nil {
		slog.Debug("websocket write failed", "type", eventType, "error", err)
		return err
	}
	return nil
}

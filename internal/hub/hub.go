// Package hub owns the set of live push channels and their association
// with authenticated identities.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/renshaw/taskwire/internal/models"
)

// maxDecodeErrorsPerConn bounds garbage input before the channel is dropped.
const maxDecodeErrorsPerConn = 8

// UnreadCounter reports how many undelivered mailbox entries an identity
// has; the count is flushed to a channel right after it authenticates.
type UnreadCounter interface {
	CountUndelivered(ctx context.Context, identity string) (int, error)
}

// peer is one live channel. Writes are serialized by the peer mutex so
// concurrent broadcasts cannot interleave frames.
type peer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{conn: conn, encoder: json.NewEncoder(conn)}
}

func (p *peer) send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(v)
}

// Hub maintains the live-channel set. A channel starts unauthenticated and
// is eligible only for broadcast-class messages until the client sends its
// identity. Multiple channels may authenticate as the same identity
// (multi-device); identity sends go to all of them.
type Hub struct {
	unread UnreadCounter
	logger *slog.Logger

	mu         sync.Mutex
	identities map[*peer]string // "" while unauthenticated
	byIdentity map[string]map[*peer]struct{}
}

// New creates a hub. unread may be nil, in which case no count is flushed
// on authentication.
func New(unread UnreadCounter, logger *slog.Logger) *Hub {
	return &Hub{
		unread:     unread,
		logger:     logger,
		identities: make(map[*peer]string),
		byIdentity: make(map[string]map[*peer]struct{}),
	}
}

// Handler returns the websocket endpoint handler (GET /ws).
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(h.handleConn)
}

func (h *Hub) handleConn(conn *websocket.Conn) {
	p := newPeer(conn)
	h.register(p)
	defer h.remove(p)

	greeting := models.NewBroadcast(models.TypeConnectionEstablished, "Connected to notification service")
	if err := p.send(greeting); err != nil {
		h.logger.Warn("hub: greeting send failed", slog.String("error", err.Error()))
		return
	}

	decoder := json.NewDecoder(conn)
	decodeErrors := 0

	for {
		var frame models.AuthFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			h.logger.Warn("hub: invalid frame", slog.String("error", err.Error()))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Type {
		case models.TypeAuthenticate:
			if frame.UserID == "" {
				h.logger.Warn("hub: authenticate without userId")
				continue
			}
			h.authenticate(p, frame.UserID)
			h.flushUnreadCount(conn.Request().Context(), p, frame.UserID)
		default:
			// Unknown inbound types are ignored, never fatal.
			h.logger.Warn("hub: unknown message type", slog.String("type", frame.Type))
		}
	}
}

func (h *Hub) register(p *peer) {
	h.mu.Lock()
	h.identities[p] = ""
	total := len(h.identities)
	h.mu.Unlock()
	h.logger.Info("hub: channel opened", slog.Int("clients", total))
}

// authenticate associates the channel with an identity. Re-authentication
// under a different identity moves the channel.
func (h *Hub) authenticate(p *peer, identity string) {
	h.mu.Lock()
	if prev := h.identities[p]; prev != "" {
		h.detachLocked(p, prev)
	}
	h.identities[p] = identity
	set, ok := h.byIdentity[identity]
	if !ok {
		set = make(map[*peer]struct{})
		h.byIdentity[identity] = set
	}
	set[p] = struct{}{}
	devices := len(set)
	h.mu.Unlock()
	h.logger.Info("hub: channel authenticated",
		slog.String("identity", identity),
		slog.Int("devices", devices))
}

func (h *Hub) flushUnreadCount(ctx context.Context, p *peer, identity string) {
	if h.unread == nil {
		return
	}
	count, err := h.unread.CountUndelivered(ctx, identity)
	if err != nil {
		h.logger.Warn("hub: unread count failed",
			slog.String("identity", identity),
			slog.String("error", err.Error()))
		return
	}
	if count == 0 {
		return
	}
	n, err := models.New(models.TypeUnreadNotifications, identity, models.UnreadData{Count: count})
	if err != nil {
		return
	}
	if err := p.send(n); err != nil {
		h.logger.Warn("hub: unread count send failed", slog.String("identity", identity))
	}
}

func (h *Hub) detachLocked(p *peer, identity string) {
	if set, ok := h.byIdentity[identity]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(h.byIdentity, identity)
		}
	}
}

// remove drops the channel from the live set and closes it. Safe to call
// for a peer that was already removed by a failed send.
func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	identity, present := h.identities[p]
	if present {
		delete(h.identities, p)
		if identity != "" {
			h.detachLocked(p, identity)
		}
	}
	total := len(h.identities)
	h.mu.Unlock()
	_ = p.conn.Close()
	if present {
		h.logger.Info("hub: channel closed", slog.Int("clients", total))
	}
}

// SendToIdentity serializes the notification once and sends it to every
// open channel authenticated as identity. A channel whose send fails is
// removed from the live set; the send is not retried there. Returns how
// many channels actually received the message.
func (h *Hub) SendToIdentity(identity string, n models.Notification) int {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.byIdentity[identity]))
	for p := range h.byIdentity[identity] {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	delivered := 0
	for _, p := range peers {
		if err := p.send(n); err != nil {
			h.logger.Warn("hub: send failed, dropping channel",
				slog.String("identity", identity),
				slog.String("type", n.Type),
				slog.String("error", err.Error()))
			h.remove(p)
			continue
		}
		delivered++
	}
	return delivered
}

// Broadcast sends to every open channel regardless of authentication state.
func (h *Hub) Broadcast(n models.Notification) int {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.identities))
	for p := range h.identities {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	delivered := 0
	for _, p := range peers {
		if err := p.send(n); err != nil {
			h.logger.Warn("hub: broadcast send failed, dropping channel",
				slog.String("type", n.Type),
				slog.String("error", err.Error()))
			h.remove(p)
			continue
		}
		delivered++
	}
	return delivered
}

// ClientCount returns the number of open channels.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.identities)
}

// IdentityOnline reports whether at least one authenticated channel exists
// for identity.
func (h *Hub) IdentityOnline(identity string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byIdentity[identity]) > 0
}

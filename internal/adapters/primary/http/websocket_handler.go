package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	wsAdapter "github.com/lorrc/support-chat-gateway/internal/adapters/primary/websocket"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// closeWait bounds the close frame written to a rejected connection.
const closeWait = time.Second

// WebSocketHandler upgrades /ws requests and hands each connection to the
// gateway.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	gateway  ports.Gateway
	upgrader websocket.Upgrader
	client   wsAdapter.ClientConfig
	logger   *slog.Logger
}

type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	// IsDevelopment accepts any origin.
	IsDevelopment bool
	Client        wsAdapter.ClientConfig
}

func NewWebSocketHandler(hub *wsAdapter.Hub, gateway ports.Gateway, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("handler", "websocket")

	policy := newOriginPolicy(cfg.AllowedOrigins, cfg.IsDevelopment)
	return &WebSocketHandler{
		hub:     hub,
		gateway: gateway,
		client:  cfg.Client,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if policy.allows(origin) {
					return true
				}
				logger.Warn("websocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
				return false
			},
		},
	}
}

// originPolicy decides which browser origins may open a socket. Entries are
// hosts or URLs; "*.example.com" matches example.com and any subdomain.
type originPolicy struct {
	allowAll bool
	hosts    map[string]struct{}
	suffixes []string
}

func newOriginPolicy(allowed []string, allowAll bool) originPolicy {
	p := originPolicy{allowAll: allowAll, hosts: make(map[string]struct{})}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if u, err := url.Parse(entry); err == nil && u.Host != "" {
			entry = u.Host
		}
		if entry == "" {
			continue
		}
		if bare, ok := strings.CutPrefix(entry, "*."); ok {
			p.hosts[bare] = struct{}{}
			p.suffixes = append(p.suffixes, "."+bare)
			continue
		}
		p.hosts[entry] = struct{}{}
	}
	return p
}

// allows reports whether origin may connect. Requests without an Origin
// header come from non-browser clients and are allowed.
func (p originPolicy) allows(origin string) bool {
	if p.allowAll || origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if _, ok := p.hosts[u.Host]; ok {
		return true
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(u.Host, suffix) {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket connection requests. The connection is upgraded
// first so an authentication failure can be reported with a policy-violation
// close frame, then handed to the gateway.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credential := credentialFrom(r)

	// 1. Upgrade the connection
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	// 2. Make the connection addressable before the gateway can emit to it
	connectionID := uuid.NewString()
	client := wsAdapter.NewClient(h.hub, conn, connectionID, h.client, h.logger)
	if err := h.hub.Attach(client); err != nil {
		h.logger.InfoContext(ctx, "websocket connection refused during shutdown",
			"connection_id", connectionID,
		)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		_ = conn.Close()
		return
	}

	// 3. Authenticate and register with the gateway
	session, err := h.gateway.Connect(ctx, connectionID, credential)
	if err != nil {
		h.hub.Finish(client)
		h.logger.WarnContext(ctx, "websocket connection rejected",
			"connection_id", connectionID,
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		_ = conn.Close()
		return
	}

	h.logger.InfoContext(ctx, "websocket connection established",
		"connection_id", connectionID,
		"user_id", session.Identity.UserID,
		"remote_addr", r.RemoteAddr,
	)

	// 4. Run the I/O pumps until the connection ends
	client.Serve(ctx, h.gateway, session)
}

// credentialFrom reads the token query parameter, falling back to the
// Authorization header.
func credentialFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return r.Header.Get("Authorization")
}

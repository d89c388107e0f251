package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"wchat-sfu/internal/ice"
	"wchat-sfu/internal/metrics"
	"wchat-sfu/internal/sfu"
	"wchat-sfu/internal/token"
	"wchat-sfu/internal/types"
)

// SecretHeaderKey carries the member token on the REST endpoints.
const SecretHeaderKey = "X-W-Chat-Secret"

// MemberLookup resolves a decoded member token to a verified RoomMember.
// Room and member storage lives behind this contract.
type MemberLookup interface {
	FindRoomMember(ctx context.Context, memberID int64, secret string) (types.RoomMember, error)
}

// Handlers is the HTTP/WebSocket edge of the SFU.
type Handlers struct {
	Logger  logging.LeveledLogger
	Lookup  MemberLookup
	Manager *sfu.Manager
	Ice     *ice.Provider
	Session sfu.SessionConfig

	upgrader websocket.Upgrader
}

// New wires the edge against its collaborators.
func New(logger logging.LeveledLogger, lookup MemberLookup, manager *sfu.Manager, iceProvider *ice.Provider, session sfu.SessionConfig) *Handlers {
	return &Handlers{
		Logger:  logger,
		Lookup:  lookup,
		Manager: manager,
		Ice:     iceProvider,
		Session: session,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type nameResponse struct {
	Name string `json:"name"`
}

// IceServers serves the browser-shaped ICE server list. TURN credentials are
// derived per request, so every client gets a fresh expiry.
func (h *Handlers) IceServers(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		h.Logger.Errorf("%v", err)
		respondJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid token"})
		return
	}

	respondJSON(w, http.StatusOK, h.Ice.BrowserServerConfig("client"))
}

// MemberName resolves a peer id to the member name behind it, "-" when the
// peer is unknown.
func (h *Handlers) MemberName(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		h.Logger.Errorf("%v", err)
		respondJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid token"})
		return
	}

	peerID, err := uuid.Parse(r.PathValue("peerId"))
	if err != nil {
		h.Logger.Errorf("%v", err)
		respondJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid id format"})
		return
	}

	name, ok := h.Manager.NameByPeerID(peerID)
	if !ok {
		name = "-"
	}

	respondJSON(w, http.StatusOK, nameResponse{Name: name})
}

// Metrics exposes the process counters as JSON.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(metrics.Get().ToJSON())
}

// Subscribe upgrades the connection and runs a signaling session for it.
// The member token travels in the path; a bad token closes the socket
// before any SDP is exchanged.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.PathValue("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Errorf("Failed to upgrade HTTP to Websocket: %v", err)
		return
	}

	member, err := h.fetchRoomMember(tokenStr)
	if err != nil {
		h.Logger.Errorf("Error on subscribe: %v", err)
		_ = conn.Close()
		return
	}

	if err := sfu.RunSession(conn, member, h.Manager, h.Ice, h.Session, h.Logger); err != nil {
		h.Logger.Errorf("Error on subscribe: %v", err)
	}
}

// authenticate checks the member token header against the member store.
func (h *Handlers) authenticate(r *http.Request) (types.RoomMember, error) {
	memberID, secret, err := token.Decode(r.Header.Get(SecretHeaderKey))
	if err != nil {
		return types.RoomMember{}, err
	}

	return h.Lookup.FindRoomMember(r.Context(), memberID, secret)
}

// fetchRoomMember is authenticate for the WS path, where the request
// context dies with the upgrade.
func (h *Handlers) fetchRoomMember(tokenStr string) (types.RoomMember, error) {
	memberID, secret, err := token.Decode(tokenStr)
	if err != nil {
		return types.RoomMember{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.Lookup.FindRoomMember(ctx, memberID, secret)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

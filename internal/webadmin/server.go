// Package webadmin implements the web connection class's HTTP surface:
// a plain health endpoint for orchestration probes and a websocket feed
// that streams the latest ranking snapshot to authenticated admin
// clients. The teacher has no HTTP surface of its own (L1J speaks only
// its binary protocol); httprouter and gorilla/websocket are instead
// learned from the rest of the example pack and applied to spec.md
// §4.1's "web" connection class, which this spec splits out from
// player/room traffic specifically to carry this kind of out-of-band
// administrative channel.
package webadmin

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/metaserver/metaserver/internal/auth"
	"github.com/metaserver/metaserver/internal/ranking"
	"github.com/metaserver/metaserver/internal/store"
	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap"
)

// snapshotInterval is how often an open admin websocket receives a fresh
// ranking rollup.
const snapshotInterval = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the admin HTTP surface, run alongside internal/net.Manager's
// player and room frame listeners rather than through them.
type Server struct {
	Auth    *auth.Service
	Ranking *ranking.Engine
	Log     *zap.Logger

	httpSrv *http.Server
}

func New(bindAddr string, authSvc *auth.Service, rank *ranking.Engine, log *zap.Logger) *Server {
	s := &Server{Auth: authSvc, Ranking: rank, Log: log}

	router := httprouter.New()
	router.GET("/healthz", s.handleHealthz)
	router.GET("/admin/ws", s.handleAdminWebsocket)

	s.httpSrv = &http.Server{Addr: bindAddr, Handler: router}
	return s
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleAdminWebsocket authenticates the same bearer token C2 mints for
// player logins (spec.md §4.2/§6), requires the FlagAdmin bit, and then
// streams the caste-ranking rollup on a timer until the client
// disconnects.
func (s *Server) handleAdminWebsocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var tok auth.Token
	raw, err := hex.DecodeString(r.URL.Query().Get("token"))
	if err != nil || len(raw) != len(tok) {
		http.Error(w, "missing or malformed token", http.StatusUnauthorized)
		return
	}
	copy(tok[:], raw)

	clientIP := wire.IPv4ToUint32(r.RemoteAddr)
	userID, err := s.Auth.ValidateToken(tok, clientIP, time.Now())
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	u, err := s.Auth.Users.GetByID(r.Context(), userID)
	if err != nil || !u.HasFlag(store.FlagAdmin) {
		http.Error(w, "admin flag required", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(s.Ranking.Latest().Overall); err != nil {
			return
		}
	}
}

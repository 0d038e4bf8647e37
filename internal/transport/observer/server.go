package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"beltway.ai/internal/observerproto"
	"beltway.ai/internal/sim/world"
)

// Server streams read-only TICK messages describing node contents to loopback clients.
type Server struct {
	world *world.World
	log   zerolog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// maxNodes caps what a client may request per TICK.
	maxNodes int
}

func NewServer(w *world.World, logger zerolog.Logger) *Server {
	return &Server{
		world: w,
		log:   logger.With().Str("component", "observer").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		maxNodes: 16384,
	}
}

func (s *Server) SetMaxNodes(n int) {
	if n > 0 {
		s.maxNodes = n
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		cats := s.world.Catalogs()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			WorldParams:     observerproto.WorldParams{TickRateHz: cfg.TickRateHz},
			NodeTypes:       append([]string(nil), cats.Nodes.Palette...),
			ItemPalette:     append([]string(nil), cats.Items.Palette...),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg, s.maxNodes)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		tickOut := make(chan []byte, 8)

		joinReq := world.ObserverJoinRequest{
			SessionID: sid,
			TickOut:   tickOut,
			MaxNodes:  sub.MaxNodes,
			Region:    sub.Region,
			Belts:     sub.Belts,
		}
		select {
		case s.world.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		s.log.Debug().Str("session", sid).Int("max_nodes", sub.MaxNodes).Msg("observer joined")
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-tickOut:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := decodeSubscribe(msg, s.maxNodes)
			if !ok {
				continue
			}
			req := world.ObserverSubscribeRequest{
				SessionID: sid,
				MaxNodes:  sub.MaxNodes,
				Region:    sub.Region,
				Belts:     sub.Belts,
			}
			select {
			case s.world.ObserverSubscribe() <- req:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte, limit int) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub, limit)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg, limit int) {
	if sub.MaxNodes <= 0 {
		sub.MaxNodes = 1024
	}
	if limit > 0 && sub.MaxNodes > limit {
		sub.MaxNodes = limit
	}
	if r := sub.Region; r != nil {
		if r.Min[0] > r.Max[0] {
			r.Min[0], r.Max[0] = r.Max[0], r.Min[0]
		}
		if r.Min[1] > r.Max[1] {
			r.Min[1], r.Max[1] = r.Max[1], r.Min[1]
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

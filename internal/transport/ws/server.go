package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"beltway.ai/internal/protocol"
	"beltway.ai/internal/sim/world"
)

// Server accepts operator sessions that submit world commands and receive one RESULT per command.
type Server struct {
	world *world.World
	log   zerolog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger zerolog.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, actor, out := s.handshake(conn)
		if sid == "" {
			return
		}
		s.log.Info().Str("session", sid).Str("actor", actor).Msg("operator connected")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCmd || base.ProtocolVersion != protocol.Version {
				continue
			}
			var cmd protocol.CmdMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				s.push(out, result(cmd.Seq, world.CommandResult{}, protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			s.submit(ctx, actor, cmd, out)
		}
		s.log.Info().Str("session", sid).Msg("operator disconnected")
	}
}

// submit hands the command to the world loop and forwards its result without blocking the reader.
func (s *Server) submit(ctx context.Context, actor string, msg protocol.CmdMsg, out chan []byte) {
	cmd := msg.Command
	cmd.Actor = actor
	resp := make(chan world.CommandResult, 1)
	cmd.Resp = resp
	select {
	case s.world.Commands() <- cmd:
	default:
		s.push(out, result(msg.Seq, world.CommandResult{Tick: s.world.CurrentTick()}, protocol.ErrWorldBusy, "command queue full"))
		return
	}
	go func() {
		select {
		case <-ctx.Done():
		case res := <-resp:
			code, text := "", ""
			if res.Err != nil {
				code, text = protocol.CodeFor(res.Err), res.Err.Error()
			}
			s.push(out, result(msg.Seq, res, code, text))
		}
	}()
}

func (s *Server) push(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		// Slow reader; results are best-effort.
	}
}

func result(seq uint64, res world.CommandResult, code, text string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Seq:             seq,
		Tick:            res.Tick,
		Node:            res.Node,
		OK:              code == "",
		Code:            code,
		Message:         text,
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sid, actor string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", "", nil
	}
	actor = strings.TrimSpace(hello.Actor)
	if actor == "" {
		actor = "operator"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	out = make(chan []byte, maxQ)
	sid = fmt.Sprintf("S%d", s.nextID.Add(1))

	cfg := s.world.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sid,
		WorldID:         cfg.ID,
		Tick:            s.world.CurrentTick(),
		TickRateHz:      cfg.TickRateHz,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", "", nil
	}
	return sid, actor, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

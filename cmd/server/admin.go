package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"beltway.ai/internal/observability"
	"beltway.ai/internal/observerproto"
	"beltway.ai/internal/persistence/indexdb"
	"beltway.ai/internal/protocol"
	"beltway.ai/internal/sim/world"
)

type adminAPI struct {
	world *world.World
	index *indexdb.SQLiteIndex
}

type commandOutcome struct {
	Tick  uint64 `json:"tick"`
	Node  string `json:"node,omitempty"`
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

func (a *adminAPI) state() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
			Index   *indexdb.Stats     `json:"index,omitempty"`
		}{
			WorldID: a.world.ID(),
			Tick:    a.world.CurrentTick(),
			Metrics: a.world.Metrics(),
		}
		if a.index != nil {
			st := a.index.Stats()
			resp.Index = &st
		}
		writeJSON(rw, http.StatusOK, resp)
	}
}

// nodes returns PeekContents-style views of every node, or of the node covering ?x=&y=.
func (a *adminAPI) nodes() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		req := world.InspectRequest{
			Belts: q.Get("belts") == "1" || q.Get("belts") == "true",
			Resp:  make(chan []observerproto.NodeState, 1),
		}
		if q.Has("x") || q.Has("y") {
			x, errX := strconv.Atoi(q.Get("x"))
			y, errY := strconv.Atoi(q.Get("y"))
			if errX != nil || errY != nil {
				http.Error(rw, "bad x/y", http.StatusBadRequest)
				return
			}
			req.Pos = &world.Vec2i{X: x, Y: y}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		select {
		case a.world.Inspect() <- req:
		case <-ctx.Done():
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		select {
		case nodes := <-req.Resp:
			if req.Pos != nil && len(nodes) == 0 {
				http.Error(rw, "no node", http.StatusNotFound)
				return
			}
			writeJSON(rw, http.StatusOK, nodes)
		case <-ctx.Done():
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
		}
	}
}

// commands accepts one command object or an array. All of them apply at the same tick boundary.
func (a *adminAPI) commands() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		cmds, err := decodeCommands(body)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		actor := strings.TrimSpace(r.Header.Get("X-Actor"))
		if actor == "" {
			actor = "admin"
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		for i := range cmds {
			cmds[i].Actor = actor
			cmds[i].Resp = make(chan world.CommandResult, 1)
			select {
			case a.world.Commands() <- cmds[i]:
			case <-ctx.Done():
				http.Error(rw, "command queue full", http.StatusServiceUnavailable)
				return
			}
		}
		out := make([]commandOutcome, 0, len(cmds))
		for _, c := range cmds {
			select {
			case res := <-c.Resp:
				o := commandOutcome{Tick: res.Tick, Node: res.Node, OK: res.Err == nil}
				if res.Err != nil {
					o.Code, o.Error = protocol.CodeFor(res.Err), res.Err.Error()
				}
				out = append(out, o)
			case <-ctx.Done():
				http.Error(rw, "timed out waiting for tick", http.StatusGatewayTimeout)
				return
			}
		}
		writeJSON(rw, http.StatusOK, out)
	}
}

func decodeCommands(body []byte) ([]world.Command, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var cmds []world.Command
		err := json.Unmarshal(body, &cmds)
		return cmds, err
	}
	var c world.Command
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, err
	}
	return []world.Command{c}, nil
}

func (a *adminAPI) audits() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if a.index == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		node := strings.TrimSpace(r.URL.Query().Get("node"))
		if node == "" {
			http.Error(rw, "missing node", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := a.index.NodeAudits(r.Context(), node, limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []world.AuditEntry{}
		}
		writeJSON(rw, http.StatusOK, entries)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
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

// The index helpers keep a nil *SQLiteIndex from becoming a non-nil interface.

func indexTicks(idx *indexdb.SQLiteIndex) world.TickLogger {
	if idx == nil {
		return nil
	}
	return idx
}

func indexAudits(idx *indexdb.SQLiteIndex) world.AuditLogger {
	if idx == nil {
		return nil
	}
	return idx
}

func statsSource(idx *indexdb.SQLiteIndex) observability.IndexStatsSource {
	if idx == nil {
		return nil
	}
	return idx
}

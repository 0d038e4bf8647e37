package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dbPath := fs.String("db", "./data/index/beltway.sqlite", "sqlite index path (tuning logs.index_db)")
	limit := fs.Int("limit", 20, "result limit")
	node := fs.String("node", "", "node id filter (audits)")
	op := fs.String("op", "", "command op filter (commands)")
	_ = fs.Parse(args)

	q := "ticks"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, queryOpts{limit: *limit, node: strings.TrimSpace(*node), op: strings.TrimSpace(*op)}, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type queryOpts struct {
	limit int
	node  string
	op    string
}

func runQuery(db *sql.DB, q string, o queryOpts, emit func(any)) error {
	if o.limit <= 0 {
		o.limit = 20
	}
	switch q {
	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,commands,transfers FROM ticks ORDER BY tick DESC LIMIT ?`, o.limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      int64  `json:"tick"`
				Digest    string `json:"digest"`
				Commands  int    `json:"commands"`
				Transfers int    `json:"transfers"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Commands, &r.Transfers); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "commands":
		query := `SELECT tick,seq,raw_json FROM commands ORDER BY tick DESC, seq LIMIT ?`
		args := []any{o.limit}
		if o.op != "" {
			query = `SELECT tick,seq,raw_json FROM commands WHERE op=? ORDER BY tick DESC, seq LIMIT ?`
			args = []any{strings.ToUpper(o.op), o.limit}
		}
		return emitRaw(db, query, args, emit)

	case "audits":
		query := `SELECT tick,seq,raw_json FROM audits ORDER BY tick DESC, seq LIMIT ?`
		args := []any{o.limit}
		if o.node != "" {
			query = `SELECT tick,seq,raw_json FROM audits WHERE node=? ORDER BY tick DESC, seq LIMIT ?`
			args = []any{o.node, o.limit}
		}
		return emitRaw(db, query, args, emit)

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query %q; usage: admin db [-db PATH] [-limit N] ticks|commands|audits|catalogs", q)
	}
}

// emitRaw prints stored raw_json rows wrapped with their tick and sequence.
func emitRaw(db *sql.DB, query string, args []any, emit func(any)) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Tick  int64           `json:"tick"`
			Seq   int             `json:"seq"`
			Entry json.RawMessage `json:"entry"`
		}
		var raw string
		if err := rows.Scan(&r.Tick, &r.Seq, &raw); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		r.Entry = json.RawMessage(raw)
		emit(r)
	}
	return rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

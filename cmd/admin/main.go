package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	persistlog "beltway.ai/internal/persistence/log"
	"beltway.ai/internal/sim/world"
	"beltway.ai/internal/sim/world/logic/ids"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "nodes":
			nodesCmd(os.Args[2:])
			return
		case "cmd":
			commandsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	logsDir := fs.String("logs", "./data/logs", "log directory (tuning logs.dir)")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(*logsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

// auditCmd prints audit entries for a tick range, optionally restricted to a grid rectangle or
// one node id.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	logsDir := fs.String("logs", "./data/logs", "log directory (tuning logs.dir)")
	worldID := fs.String("world", "world_1", "world id")
	rect := fs.String("rect", "", "cell filter: x1,y1:x2,y2 (optional)")
	node := fs.String("node", "", "node id filter, e.g. BRIDGE@3,0 (optional)")
	action := fs.String("action", "", "action filter, e.g. ITEMS_DROPPED (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	f := auditFilter{since: *sinceTick, to: *toTick, node: strings.TrimSpace(*node), action: strings.TrimSpace(*action)}
	if f.node != "" {
		if _, _, _, ok := ids.ParseNodeID(f.node); !ok {
			fmt.Fprintln(os.Stderr, "node: want TYPE@x,y")
			os.Exit(2)
		}
	}
	if strings.TrimSpace(*rect) != "" {
		min, max, err := parseRect(*rect)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rect:", err)
			os.Exit(2)
		}
		f.rect = &[2][2]int{min, max}
	}

	recs, err := readAudit(filepath.Join(*logsDir, *worldID, "audit"), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		printJSON(r)
	}
}

type auditFilter struct {
	since, to uint64
	rect      *[2][2]int
	node      string
	action    string
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if e.Tick < f.since {
		return false
	}
	if f.to != 0 && e.Tick > f.to {
		return false
	}
	if f.node != "" && e.Node != f.node {
		return false
	}
	if f.action != "" && e.Action != f.action {
		return false
	}
	if f.rect != nil && !withinRect(e.Pos, f.rect[0], f.rect[1]) {
		return false
	}
	return true
}

func readAudit(dir string, f auditFilter) ([]world.AuditEntry, error) {
	files, err := persistlog.ListFiles(dir, "audit")
	if err != nil {
		return nil, err
	}
	var out []world.AuditEntry
	for _, path := range files {
		err := persistlog.ScanAudits(path, func(e world.AuditEntry) error {
			if f.match(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func withinRect(pos, min, max [2]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] && pos[1] >= min[1] && pos[1] <= max[1]
}

func parseRect(s string) (min, max [2]int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("want x1,y1:x2,y2")
	}
	a, err := parseVec2(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec2(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 2; i++ {
		if a[i] < b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec2(s string) ([2]int, error) {
	var v [2]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return v, fmt.Errorf("bad vec2: %q", s)
	}
	for i := 0; i < 2; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, fmt.Errorf("bad vec2: %q", s)
		}
		v[i] = n
	}
	return v, nil
}

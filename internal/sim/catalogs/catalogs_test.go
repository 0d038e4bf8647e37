package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoConfigs(t *testing.T) {
	cats, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	for _, id := range []string{"CONVEYOR", "JUNCTION", "ROUTER", "SORTER", "OVERFLOW_GATE", "BRIDGE", "CONTAINER", "SOURCE", "SINK"} {
		if _, ok := cats.Nodes.Defs[id]; !ok {
			t.Fatalf("missing node def %s", id)
		}
	}
	if cats.Nodes.Defs["CONTAINER"].Size != 2 {
		t.Fatalf("CONTAINER size=%d want 2", cats.Nodes.Defs["CONTAINER"].Size)
	}
	if _, ok := cats.Items.Index["COPPER"]; !ok {
		t.Fatalf("missing COPPER item")
	}
	if cats.Nodes.PaletteDigest == "" || cats.Items.DefsDigest == "" {
		t.Fatalf("missing digests")
	}
}

func TestLoad_RejectsBadNodeDefs(t *testing.T) {
	tests := map[string]string{
		"unknown_policy": `[{"id":"X","policy":"teleporter","capacity":1}]`,
		"zero_capacity":  `[{"id":"X","policy":"junction","capacity":0,"throughput":1}]`,
		"belt_no_speed":  `[{"id":"X","policy":"conveyor","capacity":3,"oriented":true}]`,
		"bridge_range":   `[{"id":"X","policy":"bridge","capacity":3,"throughput":2,"oriented":true}]`,
		"router_facing":  `[{"id":"X","policy":"router","capacity":1,"throughput":2}]`,
	}
	for name, nodes := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "nodes.json"), []byte(nodes), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "items.json"), []byte(`[{"id":"COPPER"}]`), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

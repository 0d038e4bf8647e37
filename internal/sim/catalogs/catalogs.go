package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

type Catalogs struct {
	Nodes NodeCatalog
	Items ItemCatalog
}

type NodeCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]NodeDef
	PaletteDigest string
	DefsDigest    string
}

// NodeDef describes one placeable transport node type.
type NodeDef struct {
	ID     string `json:"id"`
	Policy string `json:"policy"` // router, distributor, overflow, sorter, junction, bridge, conveyor, storage, source, sink
	Size   int    `json:"size,omitempty"`
	// Capacity per queue (per lane for junctions, per belt for conveyors). -1 is unbounded.
	Capacity int `json:"capacity"`
	// Throughput in items per second; travel time is its inverse.
	Throughput float64 `json:"throughput,omitempty"`
	// Speed in belt lengths per second.
	Speed    float64 `json:"speed,omitempty"`
	Range    int     `json:"range,omitempty"`
	Oriented bool    `json:"oriented"`
}

func (d NodeDef) PolicyKind() modelpkg.PolicyKind {
	k, _ := modelpkg.ParsePolicyKind(d.Policy)
	return k
}

func (d NodeDef) TravelTime() float64 {
	if d.Throughput <= 0 {
		return 0
	}
	return 1 / d.Throughput
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID       string `json:"id"`
	Category string `json:"category,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadNodes(filepath.Join(configDir, "nodes.json"), &c.Nodes); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadNodes(path string, out *NodeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []NodeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("nodes.json: %w", err)
	}
	out.Defs = map[string]NodeDef{}
	for _, d := range defs {
		if d.Size == 0 {
			d.Size = 1
		}
		if err := validateNodeDef(d); err != nil {
			return fmt.Errorf("nodes.json: %w", err)
		}
		out.Defs[d.ID] = d
	}
	out.Palette, out.Index, out.PaletteDigest = palette(out.Defs)
	return nil
}

func validateNodeDef(d NodeDef) error {
	if d.ID == "" {
		return fmt.Errorf("empty id")
	}
	kind, ok := modelpkg.ParsePolicyKind(d.Policy)
	if !ok {
		return fmt.Errorf("%s: unknown policy %q", d.ID, d.Policy)
	}
	if d.Size < 1 {
		return fmt.Errorf("%s: size must be >= 1", d.ID)
	}
	if d.Capacity == 0 || d.Capacity < int(modelpkg.Unbounded) {
		return fmt.Errorf("%s: capacity must be positive or -1", d.ID)
	}
	switch kind {
	case modelpkg.PolicyConveyor:
		if d.Capacity < 1 || d.Speed <= 0 {
			return fmt.Errorf("%s: conveyor needs finite capacity and positive speed", d.ID)
		}
		if !d.Oriented {
			return fmt.Errorf("%s: conveyor must be oriented", d.ID)
		}
	case modelpkg.PolicyBridge:
		if d.Range < 1 {
			return fmt.Errorf("%s: bridge needs range >= 1", d.ID)
		}
		if d.Throughput <= 0 {
			return fmt.Errorf("%s: throughput must be positive", d.ID)
		}
	case modelpkg.PolicyRouter, modelpkg.PolicySource:
		if !d.Oriented {
			return fmt.Errorf("%s: %s must be oriented", d.ID, d.Policy)
		}
		if d.Throughput <= 0 {
			return fmt.Errorf("%s: throughput must be positive", d.ID)
		}
	case modelpkg.PolicyDistributor, modelpkg.PolicyOverflow, modelpkg.PolicySorter, modelpkg.PolicyJunction:
		if d.Throughput <= 0 {
			return fmt.Errorf("%s: throughput must be positive", d.ID)
		}
	}
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	out.Palette, out.Index, out.PaletteDigest = palette(out.Defs)
	return nil
}

func palette[T any](defs map[string]T) ([]string, map[string]uint16, string) {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	index := make(map[string]uint16, len(ids))
	for i, id := range ids {
		index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	return ids, index, sha256Hex(palJSON)
}

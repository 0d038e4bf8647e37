// Package layout loads network layouts from YAML or TOML and turns them into world commands.
package layout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"beltway.ai/internal/sim/world"
)

//go:embed schema/layout.schema.json
var schemaJSON []byte

const schemaURL = "layout.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

type Document struct {
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links,omitempty"`
	Items []Seed `json:"items,omitempty"`
}

type Node struct {
	Type        string   `json:"type"`
	Pos         [2]int   `json:"pos"`
	Orientation string   `json:"orientation,omitempty"`
	Team        uint16   `json:"team,omitempty"`
	Selected    string   `json:"selected,omitempty"`
	Inverted    bool     `json:"inverted,omitempty"`
	Emit        string   `json:"emit,omitempty"`
	Accept      []string `json:"accept,omitempty"`
	Allow       []string `json:"allow,omitempty"`
}

type Link struct {
	From [2]int `json:"from"`
	To   [2]int `json:"to"`
}

// Seed injects Count items of one kind into the node at Pos.
type Seed struct {
	Pos   [2]int `json:"pos"`
	Item  string `json:"item"`
	Count int    `json:"count,omitempty"`
	From  string `json:"from,omitempty"`
}

// Load reads a layout file. The format follows the extension: .yaml, .yml or .toml.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &raw)
	case ".toml":
		var m map[string]any
		_, err = toml.Decode(string(b), &m)
		raw = m
	case ".json":
		err = json.Unmarshal(b, &raw)
	default:
		return nil, fmt.Errorf("%s: unsupported layout format", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	doc, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// Parse decodes YAML text (a superset of JSON) into a validated document.
func Parse(b []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return decode(raw)
}

// decode normalizes a generic tree through JSON so YAML and TOML numbers validate the same way.
func decode(raw any) (*Document, error) {
	if raw == nil {
		return nil, fmt.Errorf("empty layout")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	s, err := compiled()
	if err != nil {
		return nil, fmt.Errorf("layout schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Commands lists the mutations that build the layout: placements, then links, then seed items.
func (d *Document) Commands(actor string) ([]world.Command, error) {
	out := make([]world.Command, 0, len(d.Nodes)+len(d.Links)+len(d.Items))
	for i, n := range d.Nodes {
		o, err := world.ParseOrientation(n.Orientation)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		out = append(out, world.Command{
			Op:    world.OpPlace,
			Actor: actor,
			Place: &world.PlaceSpec{
				Type:        n.Type,
				Pos:         vec(n.Pos),
				Orientation: o,
				Team:        world.TeamTag(n.Team),
				Selected:    world.ItemKind(n.Selected),
				Inverted:    n.Inverted,
				Emit:        world.ItemKind(n.Emit),
				Accept:      kinds(n.Accept),
				Allow:       kinds(n.Allow),
			},
		})
	}
	for _, l := range d.Links {
		out = append(out, world.Command{Op: world.OpLink, Actor: actor, Pos: vec(l.From), Target: vec(l.To)})
	}
	for i, s := range d.Items {
		from, err := world.ParseOrientation(s.From)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		n := s.Count
		if n <= 0 {
			n = 1
		}
		for j := 0; j < n; j++ {
			out = append(out, world.Command{Op: world.OpEnqueue, Actor: actor, Pos: vec(s.Pos), Item: world.ItemKind(s.Item), From: from})
		}
	}
	return out, nil
}

// Apply builds the layout in a single tick. Every command error is reported, joined.
func (d *Document) Apply(w *world.World, actor string) (uint64, error) {
	cmds, err := d.Commands(actor)
	if err != nil {
		return 0, err
	}
	for i := range cmds {
		cmds[i].Resp = make(chan world.CommandResult, 1)
	}
	tick, _ := w.StepOnce(cmds)
	var errs []string
	for i, c := range cmds {
		select {
		case res := <-c.Resp:
			if res.Err != nil {
				errs = append(errs, fmt.Sprintf("%s #%d: %v", c.Op, i, res.Err))
			}
		default:
		}
	}
	if len(errs) > 0 {
		return tick, fmt.Errorf("apply layout: %s", strings.Join(errs, "; "))
	}
	return tick, nil
}

func vec(p [2]int) world.Vec2i { return world.Vec2i{X: p[0], Y: p[1]} }

func kinds(in []string) []world.ItemKind {
	if len(in) == 0 {
		return nil
	}
	out := make([]world.ItemKind, len(in))
	for i, s := range in {
		out[i] = world.ItemKind(s)
	}
	return out
}

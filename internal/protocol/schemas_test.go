package protocol_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"beltway.ai/internal/protocol"
	"beltway.ai/internal/sim/world"
)

func TestSchemas_CmdAndResult(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", name))
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var doc any
		_ = json.Unmarshal(b, &doc)
		if err := s.Validate(doc); err != nil {
			t.Fatalf("validate: %v\n%s", err, b)
		}
	}

	cmdSchema := compile("cmd.schema.json")
	resultSchema := compile("result.schema.json")

	validate(cmdSchema, protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Seq:             1,
		Command: world.Command{
			Op:    world.OpPlace,
			Place: &world.PlaceSpec{Type: "SORTER", Pos: world.Vec2i{X: -2, Y: 4}, Team: 3, Selected: "COAL"},
		},
	})
	validate(cmdSchema, protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Seq:             2,
		Command:         world.Command{Op: world.OpLink, Pos: world.Vec2i{}, Target: world.Vec2i{X: 3}},
	})
	validate(cmdSchema, protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Seq:             3,
		Command:         world.Command{Op: world.OpEnqueue, Pos: world.Vec2i{X: 1}, Item: "SAND", From: world.Direction(2)},
	})

	validate(resultSchema, protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, Seq: 1, Tick: 10, Node: "SORTER@-2,4", OK: true})
	err := errors.Join(errors.New("enqueue"), world.ErrCapacityExceeded)
	validate(resultSchema, protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, Seq: 3, Tick: 11, Code: protocol.CodeFor(err), Message: err.Error()})
}

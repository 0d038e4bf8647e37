package model

import "fmt"

// Vec2i is an integer grid cell. Multi-cell nodes are anchored at their minimum corner.
type Vec2i struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (v Vec2i) Add(o Vec2i) Vec2i { return Vec2i{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2i) ToArray() [2]int { return [2]int{v.X, v.Y} }

func (v Vec2i) String() string { return fmt.Sprintf("%d,%d", v.X, v.Y) }

func Manhattan(a, b Vec2i) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Direction is one of the four grid-aligned facings.
// Rotating by +1 turns counter-clockwise.
type Direction uint8

const (
	East Direction = iota
	North
	West
	South
)

const NumDirections = 4

var dirVectors = [NumDirections]Vec2i{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 0, Y: -1},
}

func (d Direction) Vec() Vec2i { return dirVectors[d%NumDirections] }

func (d Direction) Rotate(steps int) Direction {
	r := (int(d) + steps) % NumDirections
	if r < 0 {
		r += NumDirections
	}
	return Direction(r)
}

func (d Direction) Opposite() Direction { return d.Rotate(2) }

// Left and Right are the two side directions relative to d taken as forward.
func (d Direction) Left() Direction  { return d.Rotate(1) }
func (d Direction) Right() Direction { return d.Rotate(-1) }

func (d Direction) Valid() bool { return d < NumDirections }

func (d Direction) String() string {
	switch d {
	case East:
		return "E"
	case North:
		return "N"
	case West:
		return "W"
	case South:
		return "S"
	default:
		return "?"
	}
}

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "E", "east", "EAST", "+X":
		return East, true
	case "N", "north", "NORTH", "+Y":
		return North, true
	case "W", "west", "WEST", "-X":
		return West, true
	case "S", "south", "SOUTH", "-Y":
		return South, true
	}
	return 0, false
}

// AxisDirection returns the direction from a to b when both lie on a shared grid axis.
func AxisDirection(a, b Vec2i) (Direction, bool) {
	switch {
	case a == b:
		return 0, false
	case a.Y == b.Y && b.X > a.X:
		return East, true
	case a.Y == b.Y && b.X < a.X:
		return West, true
	case a.X == b.X && b.Y > a.Y:
		return North, true
	case a.X == b.X && b.Y < a.Y:
		return South, true
	}
	return 0, false
}

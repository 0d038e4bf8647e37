package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID renders the stable textual id of a node anchored at (x, y), e.g. "CONVEYOR@3,-2".
func NodeID(typ string, x, y int) string {
	return fmt.Sprintf("%s@%d,%d", typ, x, y)
}

func ParseNodeID(id string) (typ string, x, y int, ok bool) {
	parts := strings.SplitN(id, "@", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, 0, false
	}
	typ = parts[0]
	coord := strings.Split(parts[1], ",")
	if len(coord) != 2 {
		return "", 0, 0, false
	}
	x, err1 := strconv.Atoi(coord[0])
	y, err2 := strconv.Atoi(coord[1])
	if err1 != nil || err2 != nil {
		return "", 0, 0, false
	}
	return typ, x, y, true
}

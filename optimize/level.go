package optimize

import (
	"fmt"
	"strconv"
	"strings"
)

// Level selects which passes run. Each level runs every pass of the levels below it.
type Level int

const (
	O0 Level = iota
	O1
	O2
	O3
)

func (l Level) String() string {
	return "O" + strconv.Itoa(int(l))
}

// ParseLevel accepts "2", "O2" and "o2"
func ParseLevel(s string) (Level, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "O"), "o")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < int(O0) || n > int(O3) {
		return O0, fmt.Errorf("invalid optimization level %q: expected 0, 1, 2 or 3", s)
	}
	return Level(n), nil
}

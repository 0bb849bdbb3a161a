package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile appends rules read from path. Each non-blank line that does not
// start with "#" is one rule:
//
//	- pattern   exclude
//	+ pattern   include
//	!pattern    include
//	pattern     exclude
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lineNum := 1; sc.Scan(); lineNum++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		include, pattern := parseRule(line)
		if err := c.add(pattern, include); err != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, lineNum, err)
		}
	}
	return sc.Err()
}

func parseRule(line string) (include bool, pattern string) {
	switch {
	case strings.HasPrefix(line, "+ "):
		return true, strings.TrimSpace(line[2:])
	case strings.HasPrefix(line, "- "):
		return false, strings.TrimSpace(line[2:])
	case strings.HasPrefix(line, "!"):
		return true, strings.TrimSpace(line[1:])
	default:
		return false, line
	}
}

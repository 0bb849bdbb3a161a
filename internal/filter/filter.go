// Package filter decides which paths below a fingerprint root take part in
// a run. Rules are rsync-style globs evaluated in order; the first match wins
// and unmatched paths are included.
package filter

// Rule is one include or exclude glob.
type Rule struct {
	Pattern *compiledPattern
	Include bool
}

// Chain holds an ordered list of rules.
type Chain struct {
	rules []Rule
}

// NewChain creates an empty chain that includes everything.
func NewChain() *Chain {
	return &Chain{}
}

// AddExclude appends an exclude rule.
func (c *Chain) AddExclude(pattern string) error {
	return c.add(pattern, false)
}

// AddInclude appends an include rule.
func (c *Chain) AddInclude(pattern string) error {
	return c.add(pattern, true)
}

func (c *Chain) add(pattern string, include bool) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: include})
	return nil
}

// Empty reports whether the chain has no rules.
func (c *Chain) Empty() bool {
	return c == nil || len(c.rules) == 0
}

// Len returns the number of rules.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// Match reports whether relPath (slash-separated, relative to the root)
// should be kept. For directories a false result prunes the subtree.
func (c *Chain) Match(relPath string, isDir bool) bool {
	if c == nil {
		return true
	}
	for _, rule := range c.rules {
		if rule.Pattern.match(relPath, isDir) {
			return rule.Include
		}
	}
	return true
}

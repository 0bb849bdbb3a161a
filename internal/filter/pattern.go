package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// compiledPattern is a glob translated to an anchored regular expression.
type compiledPattern struct {
	re       *regexp.Regexp
	original string
	dirOnly  bool // trailing "/"
}

// compilePattern translates an rsync-style glob. A leading "/" or any inner
// "/" anchors the pattern at the root; otherwise it matches the final path
// component or any trailing run of components.
func compilePattern(pattern string) (*compiledPattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty filter pattern")
	}
	cp := &compiledPattern{original: pattern}

	body, dirOnly := strings.CutSuffix(pattern, "/")
	cp.dirOnly = dirOnly

	anchored := strings.Contains(body, "/")
	body = strings.TrimPrefix(body, "/")

	expr, err := globToRegex(body)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	if anchored {
		expr = "^" + expr + "$"
	} else {
		expr = "(?:^|/)" + expr + "$"
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	cp.re = re
	return cp, nil
}

func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	return cp.re.MatchString(relPath)
}

func (cp *compiledPattern) String() string {
	return cp.original
}

// globToRegex supports *, **, ?, [class], [!class] and {a,b} alternation.
//
//nolint:gocyclo // single-pass glob tokenizer
func globToRegex(glob string) (string, error) {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if strings.HasPrefix(glob[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 2
			} else if strings.HasPrefix(glob[i:], "**") {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if rest, neg := strings.CutPrefix(class, "!"); neg {
				class = "^" + rest
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '{':
			depth++
			b.WriteString("(?:")
		case '}':
			if depth == 0 {
				b.WriteString(`\}`)
				continue
			}
			depth--
			b.WriteString(")")
		case ',':
			if depth > 0 {
				b.WriteString("|")
			} else {
				b.WriteString(",")
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("unbalanced braces")
	}
	return b.String(), nil
}

package transport

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Kind says how a tree is acquired.
type Kind int

const (
	// Local is a directory already on this machine.
	Local Kind = iota
	// Git is a remote repository that must be cloned first.
	Git
)

func (k Kind) String() string {
	if k == Git {
		return "git"
	}
	return "local"
}

// Location is a parsed tree argument.
type Location struct {
	Kind Kind
	Path string // local directory (Kind == Local)
	URL  string // clone URL (Kind == Git)
	Host string
	User string
}

// IsRemote reports whether the location must be cloned before hashing.
func (l Location) IsRemote() bool {
	return l.Kind == Git
}

// String returns the location with any password in the URL redacted.
func (l Location) String() string {
	if !l.IsRemote() {
		return l.Path
	}
	if u, err := url.Parse(l.URL); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return l.URL
}

var gitSchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"ssh":     true,
	"git":     true,
	"file":    true,
	"git+ssh": true,
}

// ParseLocation classifies a CLI argument.
//
// Supported formats:
//   - /absolute/path, relative/path, ./path   → local
//   - https://host/org/repo(.git)             → git
//   - ssh://[user@]host/path, git://host/path → git
//   - file:///srv/repo.git                    → git
//   - user@host:org/repo(.git)                → git (scp-like)
//   - host:org/repo.git                       → git (scp-like)
//
// A colon only marks a remote when the part before it contains no path
// separator, so "./a:b" and "/x:y" stay local. Without a user, the scp-like
// form additionally requires a ".git" suffix.
func ParseLocation(arg string) Location {
	if scheme, _, ok := strings.Cut(arg, "://"); ok && gitSchemes[strings.ToLower(scheme)] {
		u, err := url.Parse(arg)
		if err != nil {
			return Location{Path: arg}
		}
		loc := Location{Kind: Git, URL: arg, Host: u.Hostname()}
		if u.User != nil {
			loc.User = u.User.Username()
		}
		return loc
	}

	if filepath.IsAbs(arg) || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
		return Location{Path: arg}
	}

	hostPart, pathPart, ok := strings.Cut(arg, ":")
	if !ok || hostPart == "" || pathPart == "" || strings.ContainsAny(hostPart, `/\`) {
		return Location{Path: arg}
	}

	var user, host string
	if at := strings.LastIndexByte(hostPart, '@'); at >= 0 {
		user, host = hostPart[:at], hostPart[at+1:]
	} else {
		host = hostPart
	}
	if host == "" {
		return Location{Path: arg}
	}
	if user == "" && !strings.HasSuffix(pathPart, ".git") {
		return Location{Path: arg}
	}

	return Location{Kind: Git, URL: arg, Host: host, User: user}
}

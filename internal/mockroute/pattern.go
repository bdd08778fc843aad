package mockroute

import (
	"net/url"
	"strings"
)

// pattern is a compiled route pattern.
//
// `*` and `**` both match any run of characters, `/` included; every other
// character is literal, `?` too, so "/api/todos/?todolist=1" is an exact
// pattern. Patterns starting with "/" are path-absolute: with a base URL they
// take its origin, as a request URL resolved with base.ResolveReference does,
// so "/api/x" under "http://h/app/" is "http://h/api/x". Without a base they
// are compared with path+query.
type pattern struct {
	raw      string
	resolved string
	glob     bool
	relative bool
}

func compilePattern(raw string, base *url.URL) pattern {
	p := pattern{
		raw:      raw,
		resolved: raw,
		glob:     strings.Contains(raw, "*"),
	}
	if strings.HasPrefix(raw, "/") {
		if base != nil {
			origin := url.URL{Scheme: base.Scheme, User: base.User, Host: base.Host}
			p.resolved = origin.String() + raw
		} else {
			p.relative = true
		}
	}
	return p
}

// target is the string form of u this pattern compares against.
func (p pattern) target(u *url.URL) string {
	if p.relative {
		return u.RequestURI()
	}
	return u.String()
}

func (p pattern) matchExact(u *url.URL) bool {
	return !p.glob && p.resolved == p.target(u)
}

func (p pattern) matchGlob(u *url.URL) bool {
	return p.glob && matchWildcard(p.resolved, p.target(u))
}

// matchWildcard reports whether str matches pattern with `*` wildcards
// anywhere. Consecutive stars collapse, so `**` behaves like `*`.
func matchWildcard(pattern, str string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == str
	}

	if !strings.HasPrefix(str, parts[0]) {
		return false
	}
	str = str[len(parts[0]):]

	lastPart := parts[len(parts)-1]
	if !strings.HasSuffix(str, lastPart) {
		return false
	}
	str = str[:len(str)-len(lastPart)]

	// Leftmost placement of each middle part leaves the most room for the rest.
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "" {
			continue
		}
		idx := strings.Index(str, parts[i])
		if idx < 0 {
			return false
		}
		str = str[idx+len(parts[i]):]
	}

	return true
}

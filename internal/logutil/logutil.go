// Package logutil renders intercepted request headers and bodies for debug
// logs with cookies, CSRF tokens and credentials masked.
package logutil

import (
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const mask = "[REDACTED]"

// sensitiveFragments are matched against lowercased keys with '-' and '_'
// removed, so X-CSRFToken, csrfmiddlewaretoken and api_key all hit.
var sensitiveFragments = []string{"token", "csrf", "secret", "password", "apikey", "session"}

// Sensitive reports whether a header, form or JSON key should be masked.
func Sensitive(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("-", "", "_", "").Replace(k)
	if k == "authorization" {
		return true
	}
	return slices.ContainsFunc(sensitiveFragments, func(f string) bool {
		return strings.Contains(k, f)
	})
}

// maskCookies keeps cookie names so a log still shows csrftoken was sent.
func maskCookies(v string) string {
	var names []string
	for _, part := range strings.Split(v, ";") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), "=")
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name+"="+mask)
		}
	}
	return strings.Join(names, "; ")
}

func headerValue(key, v string) string {
	switch {
	case strings.EqualFold(key, "Cookie"), strings.EqualFold(key, "Set-Cookie"):
		return maskCookies(v)
	case Sensitive(key):
		return mask
	}
	return v
}

// Headers formats h as `name="v1, v2"; ...` sorted by name, masking
// sensitive values.
func Headers(h http.Header) string {
	if len(h) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		values := h.Values(name)
		lower := strings.ToLower(name)
		if len(values) == 0 {
			parts = append(parts, lower+"=<empty>")
			continue
		}
		shown := make([]string, len(values))
		for i, v := range values {
			shown[i] = headerValue(name, v)
		}
		parts = append(parts, lower+"="+strconv.Quote(strings.Join(shown, ", ")))
	}
	return strings.Join(parts, "; ")
}

// Body formats a request body for a log line: JSON and form bodies have
// sensitive fields masked, anything past limit bytes is cut off.
func Body(contentType string, body []byte, limit int) string {
	if len(body) == 0 {
		return ""
	}
	cut := limit > 0 && len(body) > limit
	if cut {
		body = body[:limit]
	}
	text := maskBody(contentType, body)
	if cut {
		text += " [truncated]"
	}
	return text
}

func maskBody(contentType string, body []byte) string {
	media, _, _ := mime.ParseMediaType(contentType)
	switch {
	case media == "application/x-www-form-urlencoded":
		return maskForm(body)
	case strings.Contains(media, "json"):
		return maskJSON(body)
	}
	return string(body)
}

func maskForm(body []byte) string {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return string(body)
	}
	for key, vs := range values {
		if Sensitive(key) {
			for i := range vs {
				vs[i] = mask
			}
		}
	}
	return values.Encode()
}

func maskJSON(body []byte) string {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}
	maskTree(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		return string(body)
	}
	return string(out)
}

func maskTree(v any) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if Sensitive(k) {
				node[k] = mask
			} else {
				maskTree(child)
			}
		}
	case []any:
		for _, child := range node {
			maskTree(child)
		}
	}
}

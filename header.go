package bridge

import (
	"net/textproto"
	"strings"
)

// Header is a multi-value header collection keyed by canonical MIME header
// names.
type Header map[string][]string

// Get returns the first value for key, or "" if none.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	if vv := h[textproto.CanonicalMIMEHeaderKey(key)]; len(vv) > 0 {
		return vv[0]
	}
	return ""
}

// Values returns all values for key.
func (h Header) Values(key string) []string {
	if h == nil {
		return nil
	}
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

// Set replaces all values for key.
func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

// Add appends a value for key.
func (h Header) Add(key, value string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	h[k] = append(h[k], value)
}

// Del removes all values for key.
func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, vv := range h {
		out[k] = append([]string(nil), vv...)
	}
	return out
}

// SplitCookies splits a combined Set-Cookie value back into its discrete
// cookie strings. Transport-agnostic header storage merges multiple cookies
// into one comma-joined value; a naive comma split would break Expires
// attributes, whose dates contain commas. A comma starts a new cookie only
// when the text after it reads as a name=value pair before any semicolon.
func SplitCookies(combined string) []string {
	var cookies []string
	start, pos := 0, 0
	for pos < len(combined) {
		i := strings.IndexByte(combined[pos:], ',')
		if i < 0 {
			break
		}
		i += pos

		j := i + 1
		for j < len(combined) && (combined[j] == ' ' || combined[j] == '\t') {
			j++
		}
		k := j
		for k < len(combined) && combined[k] != ';' && combined[k] != ',' && combined[k] != '=' {
			k++
		}
		if k < len(combined) && combined[k] == '=' && k > j {
			cookies = append(cookies, strings.TrimSpace(combined[start:i]))
			start = j
			pos = j
		} else {
			pos = i + 1
		}
	}
	if rest := strings.TrimSpace(combined[start:]); rest != "" {
		cookies = append(cookies, rest)
	}
	return cookies
}

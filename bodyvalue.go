package bridge

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/elnormous/contenttype"
)

// BodyKind discriminates pre-parsed body representations.
type BodyKind int

const (
	// BodyText is a string body, used verbatim.
	BodyText BodyKind = iota
	// BodyParams is a key/value query-parameter container, serialized via
	// standard percent-encoding.
	BodyParams
	// BodyJSON is an arbitrary structured value. Serialized as JSON text
	// unless the content type calls for form re-encoding.
	BodyJSON
)

// BodyValue is a request body that an upstream collaborator already
// buffered and parsed. The variant is decided once at the adaptation
// boundary.
type BodyValue struct {
	Kind   BodyKind
	Text   string     // BodyText
	Params url.Values // BodyParams
	Value  any        // BodyJSON
}

var formMediaType = contenttype.NewMediaType("application/x-www-form-urlencoded")

// encodeBodyValue serializes a pre-parsed body back to wire bytes.
// contentType is the request's Content-Type header value.
func encodeBodyValue(v BodyValue, contentType string) ([]byte, error) {
	switch v.Kind {
	case BodyText:
		return []byte(v.Text), nil
	case BodyParams:
		return []byte(v.Params.Encode()), nil
	}

	// A plain key/value mapping under a form content type is re-encoded as
	// application/x-www-form-urlencoded; anything else round-trips as JSON.
	if m, ok := v.Value.(map[string]any); ok {
		if contenttype.NewMediaType(contentType).Matches(formMediaType) {
			return []byte(encodeForm(m)), nil
		}
	}
	return json.Marshal(v.Value)
}

// encodeForm re-encodes a plain key/value mapping as
// application/x-www-form-urlencoded. Array values expand to repeated keys,
// nil becomes an empty value, nested objects become their JSON text, and
// everything else is string-coerced.
func encodeForm(m map[string]any) string {
	vals := make(url.Values, len(m))
	for k, v := range m {
		if items, ok := v.([]any); ok {
			for _, item := range items {
				vals.Add(k, coerceFormValue(item))
			}
			continue
		}
		vals.Add(k, coerceFormValue(v))
	}
	return vals.Encode()
}

func coerceFormValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

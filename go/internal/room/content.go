package room

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
	"strings"
)

// Content is the normalized shape of a contribution body. Clients send bare
// strings, {"question": ...}, {"statement": ...}, or the canonical record;
// everything downstream of the ingress boundary sees only this.
type Content struct {
	Kind     string          `json:"kind"`
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// textKeys are the fields clients use to carry the contribution body, in
// precedence order. The matched key becomes the content kind.
var textKeys = []string{"question", "statement", "text"}

// NormalizeContent converts any accepted client content shape into a Content
// record. It also extracts an "order" field when present (HMW questions carry
// one). Returns a validation error for shapes it cannot interpret.
func NormalizeContent(raw json.RawMessage) (Content, int, error) {
	if len(raw) == 0 {
		return Content{}, 0, validationf("contribution content is required")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return Content{}, 0, validationf("contribution content is empty")
		}
		return Content{Kind: "text", Text: s}, 0, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Content{}, 0, validationf("contribution content must be a string or an object")
	}

	order := 0
	if v, ok := obj["order"]; ok {
		if err := json.Unmarshal(v, &order); err != nil || order < 0 {
			return Content{}, 0, validationf("contribution order must be a non-negative number")
		}
		delete(obj, "order")
	}

	var kind, text string
	for _, key := range textKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, &text); err != nil {
			return Content{}, 0, validationf("contribution %s must be a string", key)
		}
		kind = key
		delete(obj, key)
		break
	}
	if v, ok := obj["kind"]; ok {
		var explicit string
		if err := json.Unmarshal(v, &explicit); err == nil && explicit != "" {
			kind = explicit
		}
		delete(obj, "kind")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Content{}, 0, validationf("contribution content has no text")
	}
	if kind == "" {
		kind = "text"
	}

	var meta json.RawMessage
	if len(obj) > 0 {
		meta, _ = json.Marshal(obj)
	}

	return Content{Kind: kind, Text: text, Metadata: meta}, order, nil
}

// contentHash derives a stable dedup key from the text body: lowercased with
// whitespace collapsed, so retries and trivial edits map to the same key.
func contentHash(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	h := fnv.New64a()
	h.Write([]byte(norm))
	return strconv.FormatUint(h.Sum64(), 16)
}

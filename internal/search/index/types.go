package index

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Hit is a single document as returned by get, mget and search.
type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Found  bool            `json:"found"`
	Score  *float64        `json:"_score,omitempty"`
	Source json.RawMessage `json:"_source"`

	raw json.RawMessage
}

func (h *Hit) UnmarshalJSON(data []byte) error {
	type plain Hit
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*h = Hit(p)
	h.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Total is the hit count. Older clusters report a bare number, newer ones an object
// with a value field.
type Total int64

func (t *Total) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = 0
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			Value int64 `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*t = Total(obj.Value)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("hits.total: %w", err)
	}
	*t = Total(n)
	return nil
}

// SearchHits is the unwrapped search result: the hit list holds sources only.
type SearchHits struct {
	Total    int64             `json:"total"`
	MaxScore *float64          `json:"max_score"`
	Hits     []json.RawMessage `json:"hits"`
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total    Total    `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []Hit    `json:"hits"`
	} `json:"hits"`
	Suggest json.RawMessage `json:"suggest"`

	raw json.RawMessage
}

// Sources extracts the _source of every hit, skipping hits without one.
func Sources(hits []Hit) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(hits))
	for _, h := range hits {
		src := bytes.TrimSpace(h.Source)
		if len(src) == 0 || bytes.Equal(src, []byte("null")) {
			continue
		}
		out = append(out, h.Source)
	}
	return out
}

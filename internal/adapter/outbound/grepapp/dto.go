package grepapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// searchResponse mirrors the JSON document returned by /api/search.
type searchResponse struct {
	Hits *searchHits `json:"hits"`
}

type searchHits struct {
	Total count       `json:"total"`
	Hits  []searchHit `json:"hits"`
}

type searchHit struct {
	Repo         flexString `json:"repo"`
	Branch       flexString `json:"branch"`
	Path         flexString `json:"path"`
	Lang         flexString `json:"lang"`
	TotalMatches count      `json:"total_matches"`
	Content      hitContent `json:"content"`
}

type hitContent struct {
	Snippet string `json:"snippet"`
}

// errorBody captures the message field of JSON error responses.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// flexString accepts either a JSON string or an object carrying the value
// under "raw" (older responses wrap highlighted fields that way).
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Raw string `json:"raw"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		*s = flexString(wrapped.Raw)
		return nil
	}
	var plain string
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	*s = flexString(plain)
	return nil
}

// count accepts a JSON number or a display string such as "1,000+".
type count int64

var errInvalidCount = errors.New("invalid count")

func (c *count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "+")
		raw = strings.ReplaceAll(raw, ",", "")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("%w: %s", errInvalidCount, data)
	}
	*c = count(n)
	return nil
}

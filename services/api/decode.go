package api

import (
	"encoding/json"
	"fmt"
)

// DecodeList accepts either a bare JSON array or an object carrying the
// array under key (or "data").
func DecodeList(raw json.RawMessage, key string, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return err
	}
	inner, ok := wrapped[key]
	if !ok {
		inner, ok = wrapped["data"]
	}
	if !ok {
		return fmt.Errorf("response has no %q list", key)
	}
	return json.Unmarshal(inner, out)
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Level is a device level value. Z-Way reports numeric levels for dimmers and
// sensors and literal values ("on", "off") for binary devices, so the JSON form
// is a number when the value is numeric and a string otherwise.
type Level string

// Float returns the numeric value of the level.
func (l Level) Float() (float64, bool) {
	raw := strings.TrimSuffix(strings.TrimSpace(string(l)), "%")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (l Level) String() string {
	return string(l)
}

func (l Level) MarshalJSON() ([]byte, error) {
	if isJSONNumber(string(l)) {
		return []byte(l), nil
	}
	return json.Marshal(string(l))
}

func isJSONNumber(s string) bool {
	if s == "" || s == "null" || strings.TrimSpace(s) != s {
		return false
	}
	var f float64
	return json.Unmarshal([]byte(s), &f) == nil
}

func (l *Level) UnmarshalJSON(body []byte) error {
	body = bytes.TrimSpace(body)
	switch {
	case len(body) == 0 || bytes.Equal(body, []byte("null")):
		*l = ""
		return nil
	case body[0] == '"':
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return err
		}
		*l = Level(s)
		return nil
	case body[0] == 't' || body[0] == 'f':
		var b bool
		if err := json.Unmarshal(body, &b); err != nil {
			return err
		}
		if b {
			*l = "on"
		} else {
			*l = "off"
		}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("invalid level %s: %w", string(body), err)
	}
	if f, err := n.Float64(); err == nil {
		*l = Level(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	*l = Level(n.String())
	return nil
}

package store

import (
	"encoding/json"
	"fmt"
)

// Settings holds the generation configuration attached to a content item.
// The common knobs are typed; anything a provider understands beyond them is
// kept in Extra and serialized inline next to the known keys.
type Settings struct {
	Temperature      *float64 `json:"temperature,omitempty" toml:"temperature"`
	TopP             *float64 `json:"top_p,omitempty" toml:"top_p"`
	MaxTokens        *int     `json:"max_tokens,omitempty" toml:"max_tokens"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" toml:"frequency_penalty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" toml:"presence_penalty"`
	N                *int     `json:"n,omitempty" toml:"n"`
	Seed             *int     `json:"seed,omitempty" toml:"seed"`

	// Image generation
	Size    string `json:"size,omitempty" toml:"size"`
	Quality string `json:"quality,omitempty" toml:"quality"`
	Style   string `json:"style,omitempty" toml:"style"`

	Extra map[string]any `json:"-" toml:"-"`
}

var knownSettingsKeys = map[string]struct{}{
	"temperature":       {},
	"top_p":             {},
	"max_tokens":        {},
	"frequency_penalty": {},
	"presence_penalty":  {},
	"n":                 {},
	"seed":              {},
	"size":              {},
	"quality":           {},
	"style":             {},
}

// settingsFields drops the custom marshalers so the known keys can be encoded
// with the regular struct tags.
type settingsFields Settings

func (s Settings) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(settingsFields(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return known, nil
	}

	merged := map[string]any{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if _, ok := knownSettingsKeys[k]; ok {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var fields settingsFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	*s = Settings(fields)
	s.Extra = nil
	for k, v := range all {
		if _, ok := knownSettingsKeys[k]; ok {
			continue
		}
		if s.Extra == nil {
			s.Extra = map[string]any{}
		}
		s.Extra[k] = v
	}
	return nil
}

// IsZero reports whether no setting at all was supplied.
func (s Settings) IsZero() bool {
	return s.Temperature == nil && s.TopP == nil && s.MaxTokens == nil &&
		s.FrequencyPenalty == nil && s.PresencePenalty == nil && s.N == nil &&
		s.Seed == nil && s.Size == "" && s.Quality == "" && s.Style == "" &&
		len(s.Extra) == 0
}

func encodeSettings(s Settings) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSettings(raw string) (Settings, error) {
	var s Settings
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Float64 and Int are small helpers for building settings literals.
func Float64(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

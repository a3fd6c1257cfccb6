package store

import "encoding/json"

// MetadataTestResults is the metadata key holding the log of test invocations.
const MetadataTestResults = "test_results"

type User struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	ProfilePicture *string `json:"profile_picture"` // Nullable
	Description    *string `json:"description"`     // Nullable
}

type Content struct {
	ID          string         `json:"id"` // Using UUID, assigned once at creation
	OwnerID     string         `json:"owner_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"` // Doubles as the hidden prompt when Prompt is empty
	ModelName   string         `json:"llm_model"`
	Settings    Settings       `json:"llm_settings"`
	Price       float64        `json:"price"`
	Prompt      *string        `json:"system_prompt"` // Nullable
	Metadata    map[string]any `json:"metadata"`
}

type Purchase struct {
	ID        int64  `json:"id"` // Backend-assigned, monotonically increasing
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
}

// HiddenPrompt returns the explicit owner prompt, or "" when none is set.
func (c *Content) HiddenPrompt() string {
	if c.Prompt == nil {
		return ""
	}
	return *c.Prompt
}

// AppendTestResult adds a {query, response} entry to metadata.test_results.
func (c *Content) AppendTestResult(query, response string) {
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	results, _ := c.Metadata[MetadataTestResults].([]any)
	results = append(results, map[string]any{
		"query":    query,
		"response": response,
	})
	c.Metadata[MetadataTestResults] = results
}

// TestResults returns the recorded test invocations in insertion order.
func (c *Content) TestResults() []map[string]any {
	raw, _ := c.Metadata[MetadataTestResults].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// cloneContent returns a deep copy normalized through JSON, which is exactly
// what the sqlite backend produces when it reads a row back.
func cloneContent(c *Content) (*Content, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out Content
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return &out, nil
}

func cloneUser(u *User) *User {
	out := *u
	if u.ProfilePicture != nil {
		p := *u.ProfilePicture
		out.ProfilePicture = &p
	}
	if u.Description != nil {
		d := *u.Description
		out.Description = &d
	}
	return &out
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	m := map[string]any{}
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

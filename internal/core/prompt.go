package core

import "strings"

const (
	queryLabelText  = "User Query"
	queryLabelImage = "Additional Information"
)

// Compose builds the text sent to a provider for a completion. Owner-authored
// sections always come before the caller's query. With no owner prompt and
// no description the result is the query itself.
func Compose(query, ownerPrompt, description string) string {
	return compose(queryLabelText, query, ownerPrompt, description)
}

// ComposeImage is Compose for image generation, where the caller's text is
// treated as additional detail for the owner's prompt.
func ComposeImage(query, ownerPrompt, description string) string {
	return compose(queryLabelImage, query, ownerPrompt, description)
}

func compose(queryLabel, query, ownerPrompt, description string) string {
	if ownerPrompt == "" && description == "" {
		return query
	}

	var b strings.Builder
	if ownerPrompt != "" {
		b.WriteString("## Prompt:\n")
		b.WriteString(ownerPrompt)
		b.WriteString("\n")
	}
	if description != "" {
		b.WriteString("## Description:\n")
		b.WriteString(description)
		b.WriteString("\n")
	}
	b.WriteString("## ")
	b.WriteString(queryLabel)
	b.WriteString(":\n")
	b.WriteString(query)
	return b.String()
}

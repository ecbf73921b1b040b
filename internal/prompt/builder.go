// Package prompt builds the system prompt handed to the LLM Gateway on
// every turn. The spec treats "personality/profile Markdown files" as an
// external collaborator reduced to this one interface; this package gives
// it a minimal, concrete shape: a base prompt plus a small set of
// composable sections (current time, tool-use policy, user profile).
package prompt

import (
	"strings"
	"time"
)

// Section contributes one labeled block to the assembled prompt. Builder
// renders sections in the order they were added, separated by blank lines.
type Section struct {
	Title string
	Body  string
}

// Builder assembles a system prompt from a fixed base and a sequence of
// Sections. It carries no state beyond its configuration and is safe for
// concurrent use once built, since Build never mutates the Builder.
type Builder struct {
	Base     string
	Sections []Section
	Now      func() time.Time
}

// NewBuilder returns a Builder with the given base prompt and the
// wall-clock time source.
func NewBuilder(base string) *Builder {
	return &Builder{Base: base, Now: time.Now}
}

// WithSection appends a section, returning the Builder for chaining.
func (b *Builder) WithSection(title, body string) *Builder {
	if strings.TrimSpace(body) == "" {
		return b
	}
	b.Sections = append(b.Sections, Section{Title: title, Body: body})
	return b
}

// Build renders the base prompt, a "Current time" section derived from
// Now, and every configured Section, in order.
func (b *Builder) Build() string {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(b.Base))
	sb.WriteString("\n\nCurrent time: ")
	sb.WriteString(now().Format(time.RFC1123))

	for _, s := range b.Sections {
		sb.WriteString("\n\n")
		sb.WriteString(s.Title)
		sb.WriteString(":\n")
		sb.WriteString(s.Body)
	}
	return sb.String()
}

// DefaultBase is the agent's baseline persona and operating rules when no
// profile Markdown is configured.
const DefaultBase = `You are a helpful personal assistant. You can use tools to look things up, run commands, and manage scheduled reminders on the user's behalf. Dangerous actions require human approval before they run — if a tool result says an action is pending approval, tell the user and wait for them to approve or deny it rather than retrying immediately.`

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// charsPerToken and perMessageOverhead are the exact constants the token
// estimate is built from: each message contributes its content length plus
// a fixed per-message overhead for role/metadata, both counted in
// characters, and the sum over all messages is divided by charsPerToken.
const (
	charsPerToken      = 4
	perMessageOverhead = 20
)

// EstimateTokens is a cheap, monotone stand-in for a real tokenizer: good
// enough to drive the compaction trigger without a provider round-trip.
func EstimateTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) + perMessageOverhead
	}
	return total / charsPerToken
}

// CompactionConfig parameterizes when and how a Conversation is compacted.
type CompactionConfig struct {
	Enabled             bool
	MaxContextTokens    int
	CompactionThreshold float64
	KeepRecentMessages  int
}

// DefaultCompactionConfig returns the spec's stated defaults.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		Enabled:             true,
		MaxContextTokens:    100000,
		CompactionThreshold: 0.7,
		KeepRecentMessages:  10,
	}
}

// Summarizer reduces a slice of messages to prose, with a set of facts to
// keep verbatim as a preservation hint.
type Summarizer interface {
	Summarize(ctx context.Context, messages []models.Message, facts []string) (string, error)
}

const summarizerSystemPrompt = "You are a conversation summarizer. Create concise, fact-preserving summaries."

// GatewaySummarizer is the production Summarizer: it asks the LLM Gateway
// to do the work, with a fixed system prompt and a length instruction.
type GatewaySummarizer struct {
	Gateway Gateway
	Model   string
}

// Summarize implements Summarizer.
func (s *GatewaySummarizer) Summarize(ctx context.Context, messages []models.Message, facts []string) (string, error) {
	if s.Gateway == nil {
		return "", errors.New("agent: no gateway configured for summarization")
	}

	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}
	if len(facts) > 0 {
		transcript.WriteString("\nFacts to preserve verbatim:\n")
		for _, f := range facts {
			transcript.WriteString("- ")
			transcript.WriteString(f)
			transcript.WriteString("\n")
		}
	}
	transcript.WriteString("\nSummarize the conversation above, preserving the facts listed. Keep it under 500 words.")

	resp, err := s.Gateway.Generate(ctx, &CompletionRequest{
		Model:     s.Model,
		System:    summarizerSystemPrompt,
		Messages:  []models.Message{{Role: models.RoleUser, Content: transcript.String()}},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Compactor implements whole-log replace compaction: the conversation's
// message slice is never mutated in place, only swapped out wholesale.
type Compactor struct {
	config     CompactionConfig
	summarizer Summarizer
}

// NewCompactor builds a Compactor. summarizer may be nil, in which case
// Compact always falls back to the deterministic summary.
func NewCompactor(config CompactionConfig, summarizer Summarizer) *Compactor {
	return &Compactor{config: config, summarizer: summarizer}
}

// ShouldCompact reports whether conv is over the configured threshold.
func (c *Compactor) ShouldCompact(conv *models.Conversation) bool {
	if !c.config.Enabled {
		return false
	}
	threshold := int(c.config.CompactionThreshold * float64(c.config.MaxContextTokens))
	estimate := EstimateTokens(conv.Messages)
	return estimate >= threshold && len(conv.Messages) > 2*c.config.KeepRecentMessages
}

var factMarkerKeywords = []string{
	"remember", "important", "my name", "my email", "password",
	"api key", "deadline", "meeting", "address", "phone",
}

var factAssertionMarkers = []string{
	"my name is", "i work", "i live", "i prefer",
	"remember that", "don't forget", "important:",
}

// importance scores one message for preservation, baseline 5, clamped to
// [0, 10]. A score of 8 or higher marks the message preserved rather than
// folded into the summary.
func importance(m models.Message) int {
	score := 5
	if m.Role == models.RoleTool {
		score += 2
	}
	if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
		score += 2
	}
	lower := strings.ToLower(m.Content)
	for _, kw := range factMarkerKeywords {
		if strings.Contains(lower, kw) {
			score += 3
			break
		}
	}
	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
		score++
	}
	if len(m.Content) < 20 {
		score -= 2
	}
	if len(m.Content) > 1000 {
		score++
	}
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score
}

// classify splits older into preserved and to-summarize. Any assistant
// message carrying tool_calls is always preserved together with its
// tool-result followers, so a tool_call_id never dangles after
// compaction regardless of its importance score.
func classify(older []models.Message) (preserved, toSummarize []models.Message) {
	keep := make([]bool, len(older))
	forcedToolCallIDs := make(map[string]bool)

	for i, m := range older {
		switch {
		case m.Role == models.RoleAssistant && len(m.ToolCalls) > 0:
			keep[i] = true
			for _, tc := range m.ToolCalls {
				forcedToolCallIDs[tc.ID] = true
			}
		case m.Role == models.RoleTool && forcedToolCallIDs[m.ToolCallID]:
			keep[i] = true
		default:
			keep[i] = importance(m) >= 8
		}
	}

	for i, m := range older {
		if keep[i] {
			preserved = append(preserved, m)
		} else {
			toSummarize = append(toSummarize, m)
		}
	}
	return preserved, toSummarize
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// mineKeyFacts extracts up to 10 facts worth preserving verbatim: every
// tool-role message's output, and every user message that asserts a fact
// per factAssertionMarkers.
func mineKeyFacts(older []models.Message) []string {
	var facts []string
	for _, m := range older {
		if len(facts) >= 10 {
			break
		}
		switch m.Role {
		case models.RoleTool:
			facts = append(facts, "[Tool result]: "+truncateRunes(m.Content, 200))
		case models.RoleUser:
			lower := strings.ToLower(m.Content)
			for _, marker := range factAssertionMarkers {
				if strings.Contains(lower, marker) {
					facts = append(facts, "[User stated]: "+truncateRunes(m.Content, 200))
					break
				}
			}
		}
	}
	if len(facts) > 10 {
		facts = facts[:10]
	}
	return facts
}

// deterministicSummary is the no-Gateway fallback: header, optional key
// facts, a role-count line, and first/last user topic.
func deterministicSummary(toSummarize []models.Message, facts []string) string {
	var sb strings.Builder
	sb.WriteString("Earlier in this conversation:")

	if len(facts) > 0 {
		sb.WriteString("\nKey information:")
		for _, f := range facts {
			sb.WriteString("\n- ")
			sb.WriteString(f)
		}
	}

	var userCount, assistantCount, toolCount int
	var firstTopic, lastTopic string
	for _, m := range toSummarize {
		switch m.Role {
		case models.RoleUser:
			userCount++
			if firstTopic == "" {
				firstTopic = m.Content
			}
			lastTopic = m.Content
		case models.RoleAssistant:
			assistantCount++
		case models.RoleTool:
			toolCount++
		}
	}

	sb.WriteString(fmt.Sprintf("\n[%d user messages, %d assistant responses, %d tool calls summarized]", userCount, assistantCount, toolCount))
	if firstTopic != "" {
		sb.WriteString("\nFirst topic: " + truncateRunes(firstTopic, 150))
	}
	if lastTopic != "" {
		sb.WriteString("\nLast topic before this: " + truncateRunes(lastTopic, 150))
	}
	return sb.String()
}

// Compact replaces conv.Messages wholesale: summary + ack + preserved +
// recent. A no-op if there is nothing old enough to fold into a summary.
func (c *Compactor) Compact(ctx context.Context, conv *models.Conversation) {
	keepCount := 2 * c.config.KeepRecentMessages
	if keepCount > len(conv.Messages) {
		keepCount = len(conv.Messages)
	}
	splitAt := len(conv.Messages) - keepCount
	older := conv.Messages[:splitAt]
	recent := conv.Messages[splitAt:]
	if len(older) == 0 {
		return
	}

	preserved, toSummarize := classify(older)
	facts := mineKeyFacts(older)

	var summary string
	if c.summarizer != nil && len(toSummarize) > 0 {
		s, err := c.summarizer.Summarize(ctx, toSummarize, facts)
		if err == nil && strings.TrimSpace(s) != "" {
			summary = s
		}
	}
	if summary == "" {
		summary = deterministicSummary(toSummarize, facts)
	}

	now := time.Now()
	newLog := make([]models.Message, 0, len(preserved)+len(recent)+2)
	newLog = append(newLog,
		models.Message{Role: models.RoleUser, Content: "[Previous conversation summary]: " + summary, CreatedAt: now},
		models.Message{Role: models.RoleAssistant, Content: "I've noted the conversation context. Let me continue helping you with that in mind.", CreatedAt: now},
	)
	newLog = append(newLog, preserved...)
	newLog = append(newLog, recent...)

	conv.Messages = newLog
	conv.CompactionCount++
}

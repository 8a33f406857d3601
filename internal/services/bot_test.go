package services

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnswerer struct {
	answer string
	err    error
	calls  int
}

func (s *stubAnswerer) Answer(ctx context.Context, question string) (string, error) {
	s.calls++
	return s.answer, s.err
}

func newTestBot(t *testing.T, opts ...BotOption) *BotService {
	t.Helper()
	kb, err := DefaultKnowledgeBase()
	require.NoError(t, err)
	opts = append([]BotOption{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return NewBotService(kb, opts...)
}

func TestDefaultKnowledgeBase(t *testing.T) {
	kb, err := DefaultKnowledgeBase()
	require.NoError(t, err)

	assert.Len(t, kb.FAQ, 15)
	assert.Len(t, kb.Patterns, 6)
	assert.Len(t, kb.Defaults, 3)
	assert.Equal(t, "what is a prime number", kb.FAQ[0].Question)
}

func TestReply_FAQ(t *testing.T) {
	bot := newTestBot(t)

	tests := []struct {
		input string
		want  string
	}{
		{"What is a prime number?", "A prime number is a natural number greater than 1 that has no positive divisors other than 1 and itself. Examples include 2, 3, 5, 7, 11."},
		{"  please DEFINE ATOM  ", "An atom is the basic building block of matter."},
		{"hello, what is gravity", "Gravity is a force that attracts two bodies towards each other. It's what keeps us on the ground."},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, bot.Reply(context.Background(), tc.input))
		})
	}
}

func TestReply_Patterns(t *testing.T) {
	bot := newTestBot(t)
	kb := bot.kb

	tests := []struct {
		input   string
		pattern string
	}{
		{"Hello", "hi|hello|hey"},
		{"how are you today", "how are you"},
		{"ok goodbye", "bye|goodbye"},
		{"thanks a lot", "thank you|thanks"},
		{"I need help", "help"},
		{"there is an issue", "error|issue"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			var replies []string
			for _, rule := range kb.Patterns {
				if rule.Pattern == tc.pattern {
					replies = rule.Replies
				}
			}
			require.NotEmpty(t, replies)
			assert.Contains(t, replies, bot.Reply(context.Background(), tc.input))
		})
	}
}

func TestReply_DefaultAndFallback(t *testing.T) {
	ctx := context.Background()
	question := "xyz qqq"

	bot := newTestBot(t)
	assert.Contains(t, bot.kb.Defaults, bot.Reply(ctx, question))

	good := &stubAnswerer{answer: " Zebras are striped. "}
	bot = newTestBot(t, WithFallback(good))
	assert.Equal(t, "Zebras are striped.", bot.Reply(ctx, question))

	bad := &stubAnswerer{err: errors.New("quota exceeded")}
	bot = newTestBot(t, WithFallback(bad))
	assert.Contains(t, bot.kb.Defaults, bot.Reply(ctx, question))
	assert.Equal(t, 1, bad.calls)

	// Known questions never reach the fallback.
	probe := &stubAnswerer{answer: "unused"}
	bot = newTestBot(t, WithFallback(probe))
	bot.Reply(ctx, "what is a verb")
	bot.Reply(ctx, "hey")
	assert.Zero(t, probe.calls)
}

func TestParseKnowledgeBase_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "faq: [:"},
		{"bad regex", "patterns:\n  - pattern: '('\n    replies: [x]\ndefaults: [d]"},
		{"no replies", "patterns:\n  - pattern: a\ndefaults: [d]"},
		{"no defaults", "faq:\n  - question: q\n    answer: a"},
		{"empty question", "faq:\n  - question: ' '\n    answer: a\ndefaults: [d]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseKnowledgeBase([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("world")}}},
			{Content: nil},
		},
	}
	assert.Equal(t, "Hello world", extractText(resp))
}

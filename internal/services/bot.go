package services

import (
	"context"
	_ "embed"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

type FAQ struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

type PatternRule struct {
	Pattern string   `yaml:"pattern"`
	Replies []string `yaml:"replies"`

	re *regexp.Regexp
}

// KnowledgeBase is the ordered rule set the bot answers from.
type KnowledgeBase struct {
	FAQ      []FAQ         `yaml:"faq"`
	Patterns []PatternRule `yaml:"patterns"`
	Defaults []string      `yaml:"defaults"`
}

// ParseKnowledgeBase decodes YAML and compiles every pattern.
func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, errors.Wrap(err, "parse knowledge base")
	}
	for i := range kb.FAQ {
		kb.FAQ[i].Question = strings.ToLower(strings.TrimSpace(kb.FAQ[i].Question))
		if kb.FAQ[i].Question == "" {
			return nil, errors.Errorf("faq entry %d has no question", i)
		}
	}
	for i := range kb.Patterns {
		re, err := regexp.Compile(kb.Patterns[i].Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "compile pattern %q", kb.Patterns[i].Pattern)
		}
		if len(kb.Patterns[i].Replies) == 0 {
			return nil, errors.Errorf("pattern %q has no replies", kb.Patterns[i].Pattern)
		}
		kb.Patterns[i].re = re
	}
	if len(kb.Defaults) == 0 {
		return nil, errors.New("knowledge base has no default replies")
	}
	return &kb, nil
}

func DefaultKnowledgeBase() (*KnowledgeBase, error) {
	return ParseKnowledgeBase(defaultKnowledge)
}

// Answerer answers questions the knowledge base does not cover.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type BotService struct {
	kb       *KnowledgeBase
	fallback Answerer

	mu  sync.Mutex
	rng *rand.Rand
}

type BotOption func(*BotService)

func WithFallback(a Answerer) BotOption {
	return func(s *BotService) {
		s.fallback = a
	}
}

func WithRand(rng *rand.Rand) BotOption {
	return func(s *BotService) {
		s.rng = rng
	}
}

func NewBotService(kb *KnowledgeBase, opts ...BotOption) *BotService {
	s := &BotService{
		kb:  kb,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply picks the answer for one message: FAQ match, then pattern, then the
// fallback answerer if any, then a default reply.
func (s *BotService) Reply(ctx context.Context, message string) string {
	input := strings.ToLower(strings.TrimSpace(message))

	for _, faq := range s.kb.FAQ {
		if strings.Contains(input, faq.Question) {
			return faq.Answer
		}
	}

	for _, rule := range s.kb.Patterns {
		if rule.re.MatchString(input) {
			return s.pick(rule.Replies)
		}
	}

	if s.fallback != nil {
		answer, err := s.fallback.Answer(ctx, message)
		if err == nil && strings.TrimSpace(answer) != "" {
			return strings.TrimSpace(answer)
		}
		if err != nil {
			log.Warn().Err(err).Msg("fallback answerer failed, using default reply")
		}
	}

	return s.pick(s.kb.Defaults)
}

func (s *BotService) pick(replies []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return replies[s.rng.Intn(len(replies))]
}

package supply

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scoring"
)

// DefaultTopics seeds the template supplier when no topics are configured
var DefaultTopics = []string{
	"remote collaboration",
	"developer productivity",
	"customer research",
	"shipping small changes",
	"technical debt",
}

// TemplateSupplier writes placeholder drafts from a fixed template per rule
// family, rotating through its topics on every call.
type TemplateSupplier struct {
	mu     sync.Mutex
	topics []string
	next   int
}

// NewTemplateSupplier creates a template supplier; with no topics it uses
// DefaultTopics
func NewTemplateSupplier(topics ...string) *TemplateSupplier {
	var clean []string
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		clean = append(clean, DefaultTopics...)
	}
	return &TemplateSupplier{topics: clean}
}

func (s *TemplateSupplier) SupplyDraft(ctx context.Context, profile platform.Profile) (scoring.Draft, error) {
	if err := ctx.Err(); err != nil {
		return scoring.Draft{}, err
	}
	topic := s.nextTopic()

	var text string
	switch profile.Kind {
	case platform.KindProfessional:
		text = fmt.Sprintf("Three things we learned about %s this quarter.\n\n"+
			"Small, steady improvements beat big rewrites.\n\n"+
			"Writing decisions down saves everyone time.", topic)
	case platform.KindLongForm:
		text = fmt.Sprintf("A practical guide to %s\n\n"+
			"Most teams meet %s long before they have a name for it. "+
			"This piece walks through the patterns that worked for us, "+
			"the ones that did not, and how to tell them apart early.", topic, topic)
	default:
		text = fmt.Sprintf("Hot take on %s: start smaller than you think", topic)
	}

	return scoring.Draft{Text: text, Platform: profile.ID}, nil
}

func (s *TemplateSupplier) nextTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic := s.topics[s.next%len(s.topics)]
	s.next++
	return topic
}

package platform

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ID identifies a publishing destination
type ID string

const (
	ProfessionalNetwork ID = "professional-network"
	LongFormPublisher   ID = "long-form-publisher"
	Microblog           ID = "microblog"
)

// Kind selects the rule family used to score and format a platform's content
type Kind string

const (
	KindProfessional Kind = "professional"
	KindLongForm     Kind = "longform"
	KindMicroblog    Kind = "microblog"
)

// Criterion names, in the order each rule family evaluates them
const (
	CriterionParagraphs        = "Paragraphs"
	CriterionCallToAction      = "Call to Action"
	CriterionStrategicHashtags = "Strategic Hashtags"
	CriterionProfessionalTone  = "Professional Tone"

	CriterionReadTime   = "Estimated Read Time"
	CriterionFormatting = "Formatting"
	CriterionDepth      = "Depth of Content"

	CriterionCharacterLimit  = "Character Limit"
	CriterionEngagementHooks = "Engagement Hooks"
	CriterionHashtagUsage    = "Hashtag Usage"
)

// Profile is the static description of one platform. Profiles are immutable
// once registered; accessors hand out copies of the slice fields.
type Profile struct {
	ID           ID             `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Kind         Kind           `json:"kind" yaml:"kind"`
	GoodWeekdays []time.Weekday `json:"good_weekdays" yaml:"good_weekdays"`
	GoodHours    []int          `json:"good_hours" yaml:"good_hours"`
	MaxLength    int            `json:"max_length,omitempty" yaml:"max_length"` // 0 = unlimited
	Criteria     []string       `json:"criteria" yaml:"-"`
	Rules        Rules          `json:"rules" yaml:"rules"`
}

// Rules holds the tunable parameters of a rule family
type Rules struct {
	ReferenceLength  int      `json:"reference_length,omitempty" yaml:"reference_length"`     // Depth of Content reaches 100 here
	CharsPerMinute   int      `json:"chars_per_minute,omitempty" yaml:"chars_per_minute"`     // read-time estimate
	CTALexicon       []string `json:"cta_lexicon,omitempty" yaml:"cta_lexicon"`               // case-insensitive substrings
	ClosingQuestion  string   `json:"closing_question,omitempty" yaml:"closing_question"`     // appended when no CTA
	HashtagTopics    []string `json:"hashtag_topics,omitempty" yaml:"hashtag_topics"`         // formatter picks from these
	HashtagCount     int      `json:"hashtag_count,omitempty" yaml:"hashtag_count"`           // tags appended per pass
	HeadingMaxLength int      `json:"heading_max_length,omitempty" yaml:"heading_max_length"` // synthesized H2 limit
}

// PostsOn reports whether the weekday is a good posting day
func (p Profile) PostsOn(day time.Weekday) bool {
	return slices.Contains(p.GoodWeekdays, day)
}

// GoodHour reports whether hour is one of the good posting hours
func (p Profile) GoodHour(hour int) bool {
	return slices.Contains(p.GoodHours, hour)
}

// HasLimit reports whether the platform enforces a hard length limit
func (p Profile) HasLimit() bool {
	return p.MaxLength > 0
}

func (p Profile) clone() Profile {
	c := p
	c.GoodWeekdays = slices.Clone(p.GoodWeekdays)
	c.GoodHours = slices.Clone(p.GoodHours)
	c.Criteria = slices.Clone(p.Criteria)
	c.Rules.CTALexicon = slices.Clone(p.Rules.CTALexicon)
	c.Rules.HashtagTopics = slices.Clone(p.Rules.HashtagTopics)
	return c
}

// validate checks a profile before it enters a registry
func (p Profile) validate() error {
	if p.ID == "" {
		return fmt.Errorf("platform id cannot be empty")
	}
	if _, ok := kindCriteria[p.Kind]; !ok {
		return fmt.Errorf("platform %s: unknown kind %q", p.ID, p.Kind)
	}
	if len(p.GoodWeekdays) == 0 {
		return fmt.Errorf("platform %s: good_weekdays cannot be empty", p.ID)
	}
	for _, d := range p.GoodWeekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("platform %s: weekday %d out of range 0-6", p.ID, d)
		}
	}
	if len(p.GoodHours) == 0 {
		return fmt.Errorf("platform %s: good_hours cannot be empty", p.ID)
	}
	for _, h := range p.GoodHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("platform %s: hour %d out of range 0-23", p.ID, h)
		}
	}
	if p.MaxLength < 0 {
		return fmt.Errorf("platform %s: max_length cannot be negative, got %d", p.ID, p.MaxLength)
	}
	if p.Rules.CharsPerMinute <= 0 {
		return fmt.Errorf("platform %s: chars_per_minute must be positive, got %d", p.ID, p.Rules.CharsPerMinute)
	}
	if p.Rules.ReferenceLength <= 0 {
		return fmt.Errorf("platform %s: reference_length must be positive, got %d", p.ID, p.Rules.ReferenceLength)
	}
	return nil
}

// normalize sorts and dedups the weekday set, dedups hours keeping their
// order, and fills unset rule parameters from the kind's defaults.
func (p Profile) normalize() Profile {
	n := p.clone()
	slices.Sort(n.GoodWeekdays)
	n.GoodWeekdays = slices.Compact(n.GoodWeekdays)

	seen := make(map[int]bool, len(n.GoodHours))
	hours := n.GoodHours[:0]
	for _, h := range n.GoodHours {
		if seen[h] {
			continue
		}
		seen[h] = true
		hours = append(hours, h)
	}
	n.GoodHours = hours

	if n.Name == "" {
		n.Name = string(n.ID)
	}
	n.Criteria = slices.Clone(kindCriteria[n.Kind])

	def := defaultRules(n.Kind)
	if n.Rules.ReferenceLength == 0 {
		n.Rules.ReferenceLength = def.ReferenceLength
	}
	if n.Rules.CharsPerMinute == 0 {
		n.Rules.CharsPerMinute = def.CharsPerMinute
	}
	if len(n.Rules.CTALexicon) == 0 {
		n.Rules.CTALexicon = def.CTALexicon
	}
	if n.Rules.ClosingQuestion == "" {
		n.Rules.ClosingQuestion = def.ClosingQuestion
	}
	n.Rules.HashtagTopics = hashtags(n.Rules.HashtagTopics)
	if len(n.Rules.HashtagTopics) == 0 {
		n.Rules.HashtagTopics = def.HashtagTopics
	}
	if n.Rules.HashtagCount == 0 {
		n.Rules.HashtagCount = def.HashtagCount
	}
	if n.Rules.HeadingMaxLength == 0 {
		n.Rules.HeadingMaxLength = def.HeadingMaxLength
	}
	return n.clone()
}

// hashtags turns catalog topics into single-token tags with a leading '#',
// dropping blanks and duplicates
func hashtags(topics []string) []string {
	var out []string
	for _, t := range topics {
		t = strings.TrimLeft(strings.Join(strings.Fields(t), ""), "#")
		if t == "" {
			continue
		}
		if tag := "#" + t; !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

var kindCriteria = map[Kind][]string{
	KindProfessional: {CriterionParagraphs, CriterionCallToAction, CriterionStrategicHashtags, CriterionProfessionalTone},
	KindLongForm:     {CriterionReadTime, CriterionFormatting, CriterionDepth},
	KindMicroblog:    {CriterionCharacterLimit, CriterionEngagementHooks, CriterionHashtagUsage},
}

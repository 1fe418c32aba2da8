package platform

import "time"

// Reference rule parameters
const (
	DefaultMicroblogLimit   = 280
	DefaultCharsPerMinute   = 1000
	DefaultReferenceLength  = 2000
	DefaultHeadingMaxLength = 50
)

var defaultCTALexicon = []string{"comment", "share", "thoughts"}

func defaultRules(kind Kind) Rules {
	switch kind {
	case KindProfessional:
		return Rules{
			ReferenceLength: 1300,
			CharsPerMinute:  DefaultCharsPerMinute,
			CTALexicon:      defaultCTALexicon,
			ClosingQuestion: "What are your thoughts? Share them in the comments.",
			HashtagTopics: []string{
				"#Leadership", "#Innovation", "#CareerGrowth",
				"#Productivity", "#Networking", "#FutureOfWork",
			},
			HashtagCount:     3,
			HeadingMaxLength: DefaultHeadingMaxLength,
		}
	case KindLongForm:
		return Rules{
			ReferenceLength:  DefaultReferenceLength,
			CharsPerMinute:   DefaultCharsPerMinute,
			CTALexicon:       defaultCTALexicon,
			HeadingMaxLength: DefaultHeadingMaxLength,
		}
	case KindMicroblog:
		return Rules{
			ReferenceLength: DefaultMicroblogLimit,
			CharsPerMinute:  DefaultCharsPerMinute,
			CTALexicon:      defaultCTALexicon,
			HashtagTopics: []string{
				"#tech", "#news", "#trending", "#buildinpublic", "#dev",
			},
			HashtagCount:     2,
			HeadingMaxLength: DefaultHeadingMaxLength,
		}
	default:
		return Rules{}
	}
}

// DefaultProfiles returns the reference platform table
func DefaultProfiles() []Profile {
	return []Profile{
		{
			ID:           ProfessionalNetwork,
			Name:         "Professional Network",
			Kind:         KindProfessional,
			GoodWeekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			GoodHours:    []int{9, 12, 17},
		},
		{
			ID:           LongFormPublisher,
			Name:         "Long-form Publisher",
			Kind:         KindLongForm,
			GoodWeekdays: []time.Weekday{time.Tuesday, time.Thursday},
			GoodHours:    []int{8, 20},
		},
		{
			ID:           Microblog,
			Name:         "Microblog",
			Kind:         KindMicroblog,
			GoodWeekdays: []time.Weekday{time.Sunday, time.Monday, time.Wednesday, time.Friday},
			GoodHours:    []int{7, 12, 15, 19},
			MaxLength:    DefaultMicroblogLimit,
		},
	}
}

// Default builds a registry holding the reference platform table
func Default() *Registry {
	r, err := NewRegistry(DefaultProfiles()...)
	if err != nil {
		panic("platform: invalid default table: " + err.Error())
	}
	return r
}

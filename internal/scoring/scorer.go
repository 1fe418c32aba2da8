package scoring

import (
	"math"
	"strings"

	"github.com/sawpanic/contentrun/internal/platform"
)

// Fixed criterion scores
const (
	PointsPerParagraph = 20
	PointsPerMinute    = 20

	CTAPresent        = 90
	CTAAbsent         = 40
	ProHashtagPresent = 80
	ProHashtagAbsent  = 30
	ProfessionalTone  = 75

	FormattingPresent = 85
	FormattingAbsent  = 40

	HooksPresent        = 85
	HooksAbsent         = 40
	MicroHashtagPresent = 90
	MicroHashtagAbsent  = 50

	// CharsPerPenaltyPoint is how many characters over the limit cost one point
	CharsPerPenaltyPoint = 10

	passMark = 60
)

// Scorer evaluates drafts against the rules of their platform
type Scorer struct {
	registry *platform.Registry
}

// NewScorer creates a scorer bound to a platform registry
func NewScorer(registry *platform.Registry) *Scorer {
	return &Scorer{registry: registry}
}

// Score evaluates a draft. Drafts for unregistered platforms get the
// Fallback report instead of an error.
func (s *Scorer) Score(draft Draft) Report {
	profile, err := s.registry.Lookup(draft.Platform)
	if err != nil {
		return Fallback()
	}
	return s.ScoreProfile(draft.Text, profile)
}

// ScoreProfile evaluates text against an already resolved profile
func (s *Scorer) ScoreProfile(text string, profile platform.Profile) Report {
	var ev evaluation
	switch profile.Kind {
	case platform.KindProfessional:
		ev = scoreProfessional(text, profile)
	case platform.KindLongForm:
		ev = scoreLongForm(text, profile)
	case platform.KindMicroblog:
		ev = scoreMicroblog(text, profile)
	default:
		return Fallback()
	}
	return ev.report()
}

// evaluation accumulates criteria and their feedback fragments in order
type evaluation struct {
	breakdown Breakdown
	feedback  []string
}

func (e *evaluation) add(name string, score int, fragment string) {
	e.breakdown = append(e.breakdown, Criterion{Name: name, Score: clamp(score)})
	if fragment != "" {
		e.feedback = append(e.feedback, fragment)
	}
}

func (e *evaluation) report() Report {
	return Report{
		Overall:   clamp(e.breakdown.Mean()),
		Breakdown: e.breakdown,
		Feedback:  strings.Join(e.feedback, " "),
	}
}

func scoreProfessional(text string, p platform.Profile) evaluation {
	var ev evaluation

	paragraphs := len(platform.Paragraphs(text))
	score := capped(paragraphs * PointsPerParagraph)
	ev.add(platform.CriterionParagraphs, score, pick(score >= passMark,
		"Good paragraph structure.",
		"Break the post into shorter paragraphs for readability."))

	if p.Rules.MatchesCTA(text) {
		ev.add(platform.CriterionCallToAction, CTAPresent, "Nice call to action.")
	} else {
		ev.add(platform.CriterionCallToAction, CTAAbsent, "Add a call to action to invite comments.")
	}

	if platform.HasHashtag(text) {
		ev.add(platform.CriterionStrategicHashtags, ProHashtagPresent, "Hashtags help discoverability.")
	} else {
		ev.add(platform.CriterionStrategicHashtags, ProHashtagAbsent, "Add a few relevant hashtags.")
	}

	ev.add(platform.CriterionProfessionalTone, ProfessionalTone, "Keep the tone professional.")
	return ev
}

func scoreLongForm(text string, p platform.Profile) evaluation {
	var ev evaluation
	chars := platform.Length(text)

	minutes := float64(chars) / float64(p.Rules.CharsPerMinute)
	readTime := capped(int(math.Round(minutes * PointsPerMinute)))
	ev.add(platform.CriterionReadTime, readTime, pick(readTime >= passMark,
		"Good article length.",
		"Expand the article; readers expect a few minutes of reading."))

	if hasEmphasis(text) {
		ev.add(platform.CriterionFormatting, FormattingPresent, "Good use of headings and emphasis.")
	} else {
		ev.add(platform.CriterionFormatting, FormattingAbsent, "Add headings or emphasis to structure the piece.")
	}

	depth := capped(int(math.Round(100 * float64(chars) / float64(p.Rules.ReferenceLength))))
	ev.add(platform.CriterionDepth, depth, pick(depth >= passMark,
		"The piece covers the topic in depth.",
		"Add more detail to deepen the piece."))
	return ev
}

func scoreMicroblog(text string, p platform.Profile) evaluation {
	var ev evaluation
	chars := platform.Length(text)
	limit := p.MaxLength
	if limit <= 0 {
		limit = platform.DefaultMicroblogLimit
	}

	if chars <= limit {
		ev.add(platform.CriterionCharacterLimit, 100, "Fits the character limit.")
	} else {
		ev.add(platform.CriterionCharacterLimit, 100-(chars-limit)/CharsPerPenaltyPoint,
			"Shorten the post to fit the character limit.")
	}

	if strings.ContainsAny(text, "?!") {
		ev.add(platform.CriterionEngagementHooks, HooksPresent, "Strong engagement hook.")
	} else {
		ev.add(platform.CriterionEngagementHooks, HooksAbsent, "Open with a question or exclamation to hook readers.")
	}

	if platform.HasHashtag(text) {
		ev.add(platform.CriterionHashtagUsage, MicroHashtagPresent, "Good hashtag usage.")
	} else {
		ev.add(platform.CriterionHashtagUsage, MicroHashtagAbsent, "Add a hashtag to extend reach.")
	}
	return ev
}

// hasEmphasis detects markdown emphasis ("**", "*") or headings ("#")
func hasEmphasis(text string) bool {
	return strings.ContainsAny(text, "*#")
}

func capped(v int) int {
	if v > 100 {
		return 100
	}
	return v
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func pick(ok bool, pass, fail string) string {
	if ok {
		return pass
	}
	return fail
}

package scoring

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/contentrun/internal/platform"
)

func newTestScorer() *Scorer {
	return NewScorer(platform.Default())
}

func TestScore_ProfessionalShortPost(t *testing.T) {
	report := newTestScorer().Score(Draft{Text: "Short post #hiring", Platform: platform.ProfessionalNetwork})

	assert.Equal(t, []string{"Paragraphs", "Call to Action", "Strategic Hashtags", "Professional Tone"}, report.Breakdown.Names())

	paragraphs, _ := report.Breakdown.Get("Paragraphs")
	cta, _ := report.Breakdown.Get("Call to Action")
	tags, _ := report.Breakdown.Get("Strategic Hashtags")
	tone, _ := report.Breakdown.Get("Professional Tone")
	assert.Equal(t, 20, paragraphs)
	assert.Equal(t, 40, cta)
	assert.Equal(t, 80, tags)
	assert.Equal(t, 75, tone)
	assert.Equal(t, 54, report.Overall) // (20+40+80+75)/4 = 53.75
	assert.Contains(t, report.Feedback, "Add a call to action")
}

func TestScore_ProfessionalRichPost(t *testing.T) {
	text := strings.Join([]string{
		"We shipped the new onboarding flow.",
		"It cut setup time in half.",
		"Three lessons stood out.",
		"First, talk to users early.",
		"Second, measure everything.",
		"What are your THOUGHTS? #product",
	}, "\n\n")

	report := newTestScorer().Score(Draft{Text: text, Platform: platform.ProfessionalNetwork})

	paragraphs, _ := report.Breakdown.Get("Paragraphs")
	cta, _ := report.Breakdown.Get("Call to Action")
	assert.Equal(t, 100, paragraphs, "six paragraphs are capped at 100")
	assert.Equal(t, 90, cta, "lexicon match is case-insensitive")
	assert.Equal(t, 86, report.Overall) // (100+90+80+75)/4 = 86.25
	assert.True(t, strings.HasPrefix(report.Feedback, "Good paragraph structure."))
}

func TestScore_LongFormEmpty(t *testing.T) {
	report := newTestScorer().Score(Draft{Text: "", Platform: platform.LongFormPublisher})

	assert.Equal(t, Breakdown{
		{Name: "Estimated Read Time", Score: 0},
		{Name: "Formatting", Score: 40},
		{Name: "Depth of Content", Score: 0},
	}, report.Breakdown)
	assert.Equal(t, 13, report.Overall)
}

func TestScore_LongFormScaling(t *testing.T) {
	tests := []struct {
		name     string
		chars    int
		readTime int
		depth    int
	}{
		{"one_minute", 1000, 20, 50},
		{"reference_length", 2000, 40, 100},
		{"long_article", 6000, 100, 100},
		{"half_minute_rounds_up", 500, 10, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("a", tt.chars)
			report := newTestScorer().Score(Draft{Text: text, Platform: platform.LongFormPublisher})

			readTime, _ := report.Breakdown.Get("Estimated Read Time")
			depth, _ := report.Breakdown.Get("Depth of Content")
			formatting, _ := report.Breakdown.Get("Formatting")
			assert.Equal(t, tt.readTime, readTime)
			assert.Equal(t, tt.depth, depth)
			assert.Equal(t, 40, formatting)
		})
	}

	report := newTestScorer().Score(Draft{Text: "## Title\n\nSome *emphasis*", Platform: platform.LongFormPublisher})
	formatting, _ := report.Breakdown.Get("Formatting")
	assert.Equal(t, 85, formatting)
}

func TestScore_Microblog(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		limit   int
		hooks   int
		hashtag int
	}{
		{"plain", "Hello world", 100, 40, 50},
		{"hook_and_tag", "Ready? #launch", 100, 85, 90},
		{"exactly_limit", strings.Repeat("x", 280), 100, 40, 50},
		{"nine_over", strings.Repeat("x", 289), 100, 40, 50},
		{"ten_over", strings.Repeat("x", 290), 99, 40, 50},
		{"far_over", strings.Repeat("x", 280+2000), 0, 40, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newTestScorer().Score(Draft{Text: tt.text, Platform: platform.Microblog})
			limit, _ := report.Breakdown.Get("Character Limit")
			hooks, _ := report.Breakdown.Get("Engagement Hooks")
			hashtag, _ := report.Breakdown.Get("Hashtag Usage")
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.hooks, hooks)
			assert.Equal(t, tt.hashtag, hashtag)
		})
	}
}

func TestScore_MicroblogCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 280)
	report := newTestScorer().Score(Draft{Text: text, Platform: platform.Microblog})
	limit, _ := report.Breakdown.Get("Character Limit")
	assert.Equal(t, 100, limit)
}

func TestScore_Fallback(t *testing.T) {
	report := newTestScorer().Score(Draft{Text: "anything", Platform: "unregistered-id"})

	assert.Equal(t, Report{
		Overall:   70,
		Breakdown: Breakdown{{Name: "Content Quality", Score: 70}},
		Feedback:  "No feedback available",
	}, report)
	assert.True(t, report.IsFallback())
}

func TestScore_BoundsAndMean(t *testing.T) {
	texts := []string{
		"",
		"x",
		"Short post #hiring",
		"What do you think? Comment below!\n\nSecond paragraph.",
		strings.Repeat("word ", 900),
		strings.Repeat("é", 5000) + "?#",
		"**bold** and *italic*\n\n\n\nlines",
	}

	s := newTestScorer()
	for _, id := range platform.Default().IDs() {
		for _, text := range texts {
			report := s.Score(Draft{Text: text, Platform: id})
			require.NotEmpty(t, report.Breakdown)
			assert.GreaterOrEqual(t, report.Overall, 0)
			assert.LessOrEqual(t, report.Overall, 100)

			sum := 0
			for _, c := range report.Breakdown {
				assert.GreaterOrEqual(t, c.Score, 0)
				assert.LessOrEqual(t, c.Score, 100)
				sum += c.Score
			}
			mean := float64(sum) / float64(len(report.Breakdown))
			assert.Equal(t, int(math.Round(mean)), report.Overall, "platform %s text %q", id, text)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := newTestScorer()
	draft := Draft{Text: "Launch day! #ship", Platform: platform.Microblog}
	assert.Equal(t, s.Score(draft), s.Score(draft))
}

func TestBreakdown_JSONKeepsOrder(t *testing.T) {
	report := newTestScorer().Score(Draft{Text: "Short post #hiring", Platform: platform.ProfessionalNetwork})

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data),
		`"breakdown":{"Paragraphs":20,"Call to Action":40,"Strategic Hashtags":80,"Professional Tone":75}`)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report, decoded)

	var bad Breakdown
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &bad))
}

func TestBreakdown_Mean(t *testing.T) {
	assert.Equal(t, 0, Breakdown{}.Mean())
	assert.Equal(t, 3, Breakdown{{"a", 2}, {"b", 3}}.Mean(), "2.5 rounds up")
}

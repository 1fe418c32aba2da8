package format

import (
	"hash/fnv"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"

	"github.com/sawpanic/contentrun/internal/platform"
)

const (
	paragraphSep = "\n\n"
	hashtagSep   = " "

	// boldChance is the share of long words emphasised in long-form text
	boldChance = 0.3
	// minBoldRunes is the shortest word length (exclusive) eligible for bold
	minBoldRunes = 6
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}'’-]+`)

// Formatter rewrites draft text into a platform-conforming variant.
//
// Formatting is deterministic (any pseudo-random choice is seeded from the
// text itself) and idempotent: formatting already formatted text returns it
// unchanged, because every affordance is only added when neither the rule
// detector nor the formatter's own block structure shows it is present.
type Formatter struct {
	registry *platform.Registry
}

// NewFormatter creates a formatter bound to a platform registry
func NewFormatter(registry *platform.Registry) *Formatter {
	return &Formatter{registry: registry}
}

// Format looks the platform up and formats text for it
func (f *Formatter) Format(text string, id platform.ID) (string, error) {
	profile, err := f.registry.Lookup(id)
	if err != nil {
		return "", err
	}
	return f.FormatProfile(text, profile), nil
}

// FormatProfile formats text for an already resolved profile
func (f *Formatter) FormatProfile(text string, profile platform.Profile) string {
	switch profile.Kind {
	case platform.KindProfessional:
		return formatProfessional(text, profile)
	case platform.KindLongForm:
		return formatLongForm(text, profile)
	case platform.KindMicroblog:
		return formatMicroblog(text, profile)
	default:
		return text
	}
}

func formatProfessional(text string, p platform.Profile) string {
	blocks := spacedLines(text)

	if !p.Rules.MatchesCTA(text) && !hasBlock(blocks, p.Rules.ClosingQuestion) {
		blocks = append(blocks, p.Rules.ClosingQuestion)
	}
	if !platform.HasHashtag(text) && !endsWithHashtagBlock(blocks) {
		if tags := pickHashtags(text, p.Rules.HashtagTopics, p.Rules.HashtagCount); tags != "" {
			blocks = append(blocks, tags)
		}
	}
	return strings.Join(blocks, paragraphSep)
}

func formatLongForm(text string, p platform.Profile) string {
	// A '#' already present, or the heading added below, is both a heading
	// and an emphasis marker, so a second pass changes nothing.
	if platform.HasHashtag(text) {
		return text
	}
	body := text
	if !strings.Contains(text, "*") {
		body = emphasise(text)
	}
	heading := headingFrom(text, p.Rules.HeadingMaxLength)
	if heading == "" {
		return body
	}
	return "## " + heading + paragraphSep + body
}

func formatMicroblog(text string, p platform.Profile) string {
	limit := p.MaxLength
	if limit <= 0 {
		limit = platform.DefaultMicroblogLimit
	}
	if platform.Length(text) > limit {
		return platform.Truncate(text, limit)
	}
	if platform.HasHashtag(text) {
		return text
	}
	tags := pickHashtags(text, p.Rules.HashtagTopics, p.Rules.HashtagCount)
	if tags == "" {
		return text
	}
	candidate := text + hashtagSep + tags
	if strings.TrimSpace(text) == "" {
		candidate = tags
	}
	if platform.Length(candidate) > limit {
		return text
	}
	return candidate
}

// spacedLines returns one block per non-empty line so that blocks can be
// joined with blank lines between them
func spacedLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func hasBlock(blocks []string, block string) bool {
	if block == "" {
		return true
	}
	return slices.Contains(blocks, block)
}

func endsWithHashtagBlock(blocks []string) bool {
	if len(blocks) == 0 {
		return false
	}
	for _, f := range strings.Fields(blocks[len(blocks)-1]) {
		if !strings.HasPrefix(f, "#") {
			return false
		}
	}
	return true
}

// headingFrom builds a heading from the first paragraph, cut to limit runes
// with a trailing ellipsis when longer
func headingFrom(text string, limit int) string {
	paragraphs := platform.Paragraphs(text)
	if len(paragraphs) == 0 {
		return ""
	}
	heading := strings.Join(strings.Fields(paragraphs[0]), " ")
	if limit > 0 && platform.Length(heading) > limit {
		heading = string([]rune(heading)[:limit]) + "..."
	}
	return heading
}

// emphasise bolds a pseudo-random subset of words longer than minBoldRunes
func emphasise(text string) string {
	rng := seeded(text)
	return wordPattern.ReplaceAllStringFunc(text, func(word string) string {
		if platform.Length(word) <= minBoldRunes {
			return word
		}
		if rng.Float64() >= boldChance {
			return word
		}
		return "**" + word + "**"
	})
}

// pickHashtags picks count distinct topics, seeded by the text
func pickHashtags(text string, topics []string, count int) string {
	if count <= 0 || len(topics) == 0 {
		return ""
	}
	if count > len(topics) {
		count = len(topics)
	}
	rng := seeded(text)
	order := rng.Perm(len(topics))
	picked := make([]string, 0, count)
	for _, i := range order[:count] {
		picked = append(picked, topics[i])
	}
	return strings.Join(picked, hashtagSep)
}

func seeded(text string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(text))
	sum := h.Sum64()
	return rand.New(rand.NewPCG(sum, sum>>1|1))
}

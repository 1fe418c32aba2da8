package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/sawpanic/contentrun/internal/platform"
)

// Fallback values returned when a draft targets an unregistered platform
const (
	FallbackOverall   = 70
	FallbackCriterion = "Content Quality"
	FallbackFeedback  = "No feedback available"
)

// Draft is candidate content for one platform. The engine never mutates it.
type Draft struct {
	Text     string      `json:"text"`
	Platform platform.ID `json:"platform"`
}

// Criterion is one named entry of a score breakdown
type Criterion struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Breakdown lists criterion scores in evaluation order. It encodes to JSON
// as an object whose keys keep that order.
type Breakdown []Criterion

// Get returns the score for name
func (b Breakdown) Get(name string) (int, bool) {
	for _, c := range b {
		if c.Name == name {
			return c.Score, true
		}
	}
	return 0, false
}

// Names returns criterion names in evaluation order
func (b Breakdown) Names() []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = c.Name
	}
	return out
}

// Mean returns the rounded arithmetic mean of the scores (half rounds up)
func (b Breakdown) Mean() int {
	if len(b) == 0 {
		return 0
	}
	sum := 0
	for _, c := range b {
		sum += c.Score
	}
	return int(math.Floor(float64(sum)/float64(len(b)) + 0.5))
}

func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", c.Score)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("breakdown must be a JSON object")
	}
	out := Breakdown{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("breakdown key must be a string")
		}
		var score int
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("breakdown %q: %w", name, err)
		}
		out = append(out, Criterion{Name: name, Score: score})
	}
	*b = out
	return nil
}

// Report is the result of scoring one draft
type Report struct {
	Overall   int       `json:"overall"`
	Breakdown Breakdown `json:"breakdown"`
	Feedback  string    `json:"feedback"`
}

// Fallback returns the report used when no platform rules apply
func Fallback() Report {
	return Report{
		Overall:   FallbackOverall,
		Breakdown: Breakdown{{Name: FallbackCriterion, Score: FallbackOverall}},
		Feedback:  FallbackFeedback,
	}
}

// IsFallback reports whether r is the fallback report
func (r Report) IsFallback() bool {
	return r.Overall == FallbackOverall && len(r.Breakdown) == 1 &&
		r.Breakdown[0].Name == FallbackCriterion && r.Feedback == FallbackFeedback
}

package platform

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ReferenceTable(t *testing.T) {
	r := Default()

	require.Equal(t, []ID{ProfessionalNetwork, LongFormPublisher, Microblog}, r.IDs())

	tests := []struct {
		id       ID
		weekdays []time.Weekday
		hours    []int
		maxLen   int
	}{
		{ProfessionalNetwork, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, []int{9, 12, 17}, 0},
		{LongFormPublisher, []time.Weekday{time.Tuesday, time.Thursday}, []int{8, 20}, 0},
		{Microblog, []time.Weekday{time.Sunday, time.Monday, time.Wednesday, time.Friday}, []int{7, 12, 15, 19}, 280},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			p, err := r.Lookup(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.weekdays, p.GoodWeekdays)
			assert.Equal(t, tt.hours, p.GoodHours)
			assert.Equal(t, tt.maxLen, p.MaxLength)
			assert.NotEmpty(t, p.Criteria)
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Default().Lookup("unregistered-id")
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrUnknownPlatform))

	var upe *UnknownPlatformError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, ID("unregistered-id"), upe.ID)
}

func TestAll_StableOrderAndCopies(t *testing.T) {
	r := Default()

	first := r.All()
	first[0].GoodHours[0] = 23
	first[0].Rules.CTALexicon[0] = "mutated"

	second := r.All()
	assert.Equal(t, 9, second[0].GoodHours[0], "registry must not share slices with callers")
	assert.Equal(t, "comment", second[0].Rules.CTALexicon[0])
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	valid := Profile{
		ID:           "x",
		Kind:         KindMicroblog,
		GoodWeekdays: []time.Weekday{time.Monday},
		GoodHours:    []int{9},
	}

	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr string
	}{
		{"empty_id", func(p *Profile) { p.ID = "" }, "id cannot be empty"},
		{"unknown_kind", func(p *Profile) { p.Kind = "podcast" }, "unknown kind"},
		{"no_weekdays", func(p *Profile) { p.GoodWeekdays = nil }, "good_weekdays"},
		{"bad_weekday", func(p *Profile) { p.GoodWeekdays = []time.Weekday{7} }, "out of range 0-6"},
		{"no_hours", func(p *Profile) { p.GoodHours = nil }, "good_hours"},
		{"bad_hour", func(p *Profile) { p.GoodHours = []int{24} }, "out of range 0-23"},
		{"negative_limit", func(p *Profile) { p.MaxLength = -1 }, "max_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := NewRegistry(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := NewRegistry(valid, valid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = NewRegistry()
	assert.Error(t, err)
}

func TestNewRegistry_Normalizes(t *testing.T) {
	r, err := NewRegistry(Profile{
		ID:           "custom",
		Kind:         KindProfessional,
		GoodWeekdays: []time.Weekday{time.Friday, time.Monday, time.Friday},
		GoodHours:    []int{17, 9, 17},
	})
	require.NoError(t, err)

	p, err := r.Lookup("custom")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, p.GoodWeekdays)
	assert.Equal(t, []int{17, 9}, p.GoodHours, "hour order is preserved")
	assert.Equal(t, "custom", p.Name)
	assert.Equal(t, 3, p.Rules.HashtagCount)
	assert.Equal(t, []string{CriterionParagraphs, CriterionCallToAction, CriterionStrategicHashtags, CriterionProfessionalTone}, p.Criteria)
	assert.True(t, p.PostsOn(time.Monday))
	assert.False(t, p.PostsOn(time.Sunday))
	assert.True(t, p.GoodHour(9))
	assert.False(t, p.GoodHour(10))
}

func TestRegistries_Coexist(t *testing.T) {
	a := Default()
	b, err := NewRegistry(Profile{
		ID:           Microblog,
		Kind:         KindMicroblog,
		GoodWeekdays: []time.Weekday{time.Saturday},
		GoodHours:    []int{10},
		MaxLength:    500,
	})
	require.NoError(t, err)

	pa, _ := a.Lookup(Microblog)
	pb, _ := b.Lookup(Microblog)
	assert.Equal(t, 280, pa.MaxLength)
	assert.Equal(t, 500, pb.MaxLength)
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 1, b.Len())
}

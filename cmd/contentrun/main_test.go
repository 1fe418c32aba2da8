package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/scoring"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))

	err := root.Execute()
	return out.String(), err
}

func TestPlatformsJSON(t *testing.T) {
	out, err := run(t, "", "platforms", "--json")
	require.NoError(t, err)

	var profiles []platform.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	require.Len(t, profiles, 3)
	assert.Equal(t, platform.ProfessionalNetwork, profiles[0].ID)
}

func TestPlatformsHuman(t *testing.T) {
	out, err := run(t, "", "platforms")
	require.NoError(t, err)
	assert.Contains(t, out, "(microblog)")
	assert.Contains(t, out, "280 chars")
	assert.Contains(t, out, "Tue Thu")
}

func TestScore(t *testing.T) {
	out, err := run(t, "", "score", "-p", "professional-network", "-t", "Short post #hiring", "--json")
	require.NoError(t, err)

	var report scoring.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 54, report.Overall)

	out, err = run(t, "", "score", "-p", "professional-network", "-t", "Short post #hiring")
	require.NoError(t, err)
	assert.Contains(t, out, "Overall")
	assert.Contains(t, out, " 54/100")
	assert.Contains(t, out, "Call to Action")
}

func TestScore_Stdin(t *testing.T) {
	out, err := run(t, "Ready? #launch\n", "score", "-p", "microblog", "-f", "-", "--json")
	require.NoError(t, err)

	var report scoring.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	hooks, _ := report.Breakdown.Get("Engagement Hooks")
	assert.Equal(t, 85, hooks)
}

func TestScore_UnknownPlatformFallsBack(t *testing.T) {
	out, err := run(t, "", "score", "-p", "newsletter", "-t", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "unregistered")
	assert.Contains(t, out, "Content Quality")
}

func TestScore_InputErrors(t *testing.T) {
	_, err := run(t, "", "score", "-p", "microblog")
	assert.ErrorContains(t, err, "--text or --file")

	_, err = run(t, "", "score", "-t", "hello")
	assert.ErrorContains(t, err, "--platform is required")

	_, err = run(t, "", "score", "-p", "microblog", "-t", "x", "-f", "draft.txt")
	assert.ErrorContains(t, err, "not both")
}

func TestFormat(t *testing.T) {
	out, err := run(t, "", "format", "-p", "microblog", "-t", "Shipping today #golang")
	require.NoError(t, err)
	assert.Equal(t, "Shipping today #golang\n", out)

	out, err = run(t, "", "format", "-p", "long-form-publisher", "-t", "Short intro", "--json", "--score")
	require.NoError(t, err)
	var resp struct {
		Platform platform.ID     `json:"platform"`
		Text     string          `json:"text"`
		Score    *scoring.Report `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, strings.HasPrefix(resp.Text, "## Short intro\n\n"))
	require.NotNil(t, resp.Score)
	formatting, _ := resp.Score.Breakdown.Get("Formatting")
	assert.Equal(t, 85, formatting)

	_, err = run(t, "", "format", "-p", "newsletter", "-t", "x")
	assert.ErrorIs(t, err, platform.ErrUnknownPlatform)
}

func TestSchedule(t *testing.T) {
	out, err := run(t, "", "schedule", "--days", "7", "--seed", "3", "--json")
	require.NoError(t, err)

	var entries []scheduler.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	// seven consecutive days hold one Saturday and possibly a spent day zero
	assert.GreaterOrEqual(t, len(entries), 5)
	assert.LessOrEqual(t, len(entries), 6)
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.Content)
		assert.Equal(t, scheduler.StatusScheduled, e.Status)
		assert.NotEqual(t, 0, e.Score.Overall)
	}
}

func TestSchedule_PlatformFilter(t *testing.T) {
	out, err := run(t, "", "schedule", "--days", "14", "-p", "long-form-publisher", "--json")
	require.NoError(t, err)

	var entries []scheduler.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.GreaterOrEqual(t, len(entries), 3)
	for _, e := range entries {
		assert.Equal(t, platform.LongFormPublisher, e.Platform)
	}

	_, err = run(t, "", "schedule", "-p", "newsletter")
	assert.ErrorIs(t, err, platform.ErrUnknownPlatform)
}

func TestSchedule_DryRun(t *testing.T) {
	out, err := run(t, "", "schedule", "--days", "7", "--dry-run", "--json")
	require.NoError(t, err)

	var windows []scheduler.Window
	require.NoError(t, json.Unmarshal([]byte(out), &windows))
	require.Len(t, windows, 7)

	out, err = run(t, "", "schedule", "--days", "7", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Saturday")
	assert.Contains(t, out, "none")

	_, err = run(t, "", "schedule", "--dry-run", "--persist")
	assert.Error(t, err)
}

func TestSchedule_Persist(t *testing.T) {
	out, err := run(t, "", "schedule", "--days", "3", "--persist", "--json")
	require.NoError(t, err)

	var entries []scheduler.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.LessOrEqual(t, len(entries), 3)
}

func TestSchedule_InvalidHorizon(t *testing.T) {
	_, err := run(t, "", "schedule", "--days", "-2")
	assert.ErrorIs(t, err, scheduler.ErrInvalidRequest)
}

func TestGlobalFlags(t *testing.T) {
	_, err := run(t, "", "--log-level", "chatty", "platforms")
	assert.ErrorContains(t, err, "log-level")

	dir := t.TempDir()
	catalog := filepath.Join(dir, "platforms.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`platforms:
  - id: microblog
    name: Microblog
    kind: microblog
    good_weekdays: [0, 1, 2, 3, 4, 5, 6]
    good_hours: [9]
    max_length: 140
`), 0o644))

	out, err := run(t, "", "--platforms", catalog, "platforms", "--json")
	require.NoError(t, err)
	var profiles []platform.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	require.Len(t, profiles, 1)
	assert.Equal(t, 140, profiles[0].MaxLength)

	_, err = run(t, "", "--platforms", filepath.Join(dir, "missing.yaml"), "platforms")
	assert.ErrorContains(t, err, "load platforms")

	_, err = run(t, "", "--config", filepath.Join(dir, "missing.yaml"), "platforms")
	assert.Error(t, err)
}

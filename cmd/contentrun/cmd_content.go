package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scoring"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		in     inputFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a draft against a platform's rules",
		Long: `Scores a draft per criterion (0-100) and overall. Unknown platforms get
the generic fallback report rather than an error.`,
		Example: `  contentrun score -p microblog -t "Launch day! #ship"
  contentrun score -p long-form-publisher -f draft.md --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			engine, err := a.newEngine(nil)
			if err != nil {
				return err
			}

			id := platform.ID(in.platform)
			report := engine.Score(scoring.Draft{Text: text, Platform: id})
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			newRenderer(cmd.OutOrStdout()).report(displayName(a.registry, id), report)
			return nil
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newFormatCmd(a *app) *cobra.Command {
	var (
		in        inputFlags
		asJSON    bool
		withScore bool
	)

	cmd := &cobra.Command{
		Use:   "format",
		Short: "Rewrite a draft to fit a platform's conventions",
		Long: `Formats a draft for one platform: paragraph spacing, calls to action and
hashtags for professional networks, headings and emphasis for long-form
publishers, length limits and hashtags for microblogs. Formatting an
already formatted draft leaves it unchanged.`,
		Example: `  contentrun format -p professional-network -f post.txt
  contentrun format -p microblog -t "Hello world" --score`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			engine, err := a.newEngine(nil)
			if err != nil {
				return err
			}

			id := platform.ID(in.platform)
			formatted, err := engine.Format(text, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				resp := struct {
					Platform platform.ID     `json:"platform"`
					Text     string          `json:"text"`
					Score    *scoring.Report `json:"score,omitempty"`
				}{Platform: id, Text: formatted}
				if withScore {
					report := engine.Score(scoring.Draft{Text: formatted, Platform: id})
					resp.Score = &report
				}
				return writeJSON(out, resp)
			}

			fmt.Fprintln(out, formatted)
			if withScore {
				fmt.Fprintln(out)
				newRenderer(out).report(displayName(a.registry, id), engine.Score(scoring.Draft{Text: formatted, Platform: id}))
			}
			return nil
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&withScore, "score", false, "Also score the formatted draft")
	return cmd
}

func newPlatformsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "platforms",
		Short: "List registered platform profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles := a.registry.All()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), profiles)
			}
			newRenderer(cmd.OutOrStdout()).platforms(profiles)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the profiles as JSON")
	return cmd
}

func displayName(registry *platform.Registry, id platform.ID) string {
	if p, err := registry.Lookup(id); err == nil {
		return fmt.Sprintf("%s (%s)", p.Name, p.ID)
	}
	return fmt.Sprintf("%s (unregistered, generic rules)", id)
}

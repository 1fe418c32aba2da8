package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/contentrun/internal/application"
	"github.com/sawpanic/contentrun/internal/config"
	"github.com/sawpanic/contentrun/internal/metrics"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/supply"
)

// newEngine builds the engine from the loaded config; m may be nil
func (a *app) newEngine(m *metrics.Registry) (*application.Engine, error) {
	opts := []application.Option{application.WithSchedulerConfig(a.cfg.Scheduler)}
	if m != nil {
		opts = append(opts, application.WithMetrics(m))
	}
	return application.NewEngine(a.registry, opts...)
}

// newSupplier returns the configured draft source. In http mode the template
// supplier backs the remote one when fallback is enabled.
func (a *app) newSupplier(m *metrics.Registry) (scheduler.DraftSupplier, error) {
	template := supply.NewTemplateSupplier(a.cfg.Supplier.Topics...)
	if a.cfg.Supplier.Mode != config.SupplierHTTP {
		return template, nil
	}

	remote, err := supply.NewHTTPSupplier(a.cfg.Supplier.HTTP, supply.WithSupplierMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("http supplier: %w", err)
	}
	if a.cfg.Supplier.FallbackToTemplate {
		return supply.Fallback{Primary: remote, Secondary: template}, nil
	}
	return remote, nil
}

// inputFlags is the flag set shared by commands that take a draft
type inputFlags struct {
	platform string
	text     string
	file     string
}

func (in *inputFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&in.platform, "platform", "p", "", "Target platform ID (see 'contentrun platforms')")
	fs.StringVarP(&in.text, "text", "t", "", "Draft text")
	fs.StringVarP(&in.file, "file", "f", "", "Read the draft from a file ('-' for stdin)")
}

func (in *inputFlags) read(cmd *cobra.Command) (string, error) {
	if in.platform == "" {
		return "", fmt.Errorf("--platform is required")
	}
	switch {
	case in.text != "" && in.file != "":
		return "", fmt.Errorf("use either --text or --file, not both")
	case in.text != "":
		return in.text, nil
	case in.file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	case in.file != "":
		data, err := os.ReadFile(in.file)
		if err != nil {
			return "", fmt.Errorf("read draft: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	default:
		return "", fmt.Errorf("provide the draft with --text or --file")
	}
}

func parsePlatformIDs(values []string) []platform.ID {
	var ids []platform.ID
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			ids = append(ids, platform.ID(v))
		}
	}
	return ids
}

package supply

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/scoring"
)

// Fallback asks primary first and secondary when primary fails. A
// cancelled context is never papered over.
type Fallback struct {
	Primary   scheduler.DraftSupplier
	Secondary scheduler.DraftSupplier
}

func (f Fallback) SupplyDraft(ctx context.Context, profile platform.Profile) (scoring.Draft, error) {
	draft, err := f.Primary.SupplyDraft(ctx, profile)
	if err == nil {
		return draft, nil
	}
	if ctx.Err() != nil || f.Secondary == nil {
		return scoring.Draft{}, err
	}
	log.Warn().Err(err).Str("platform", string(profile.ID)).Msg("Primary draft supplier failed, using fallback")
	return f.Secondary.SupplyDraft(ctx, profile)
}

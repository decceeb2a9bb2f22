package orchestrator

import (
	"context"
	"log/slog"

	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
)

// Placement is where a new server will be created.
type Placement struct {
	Region string
	Zone   string
}

// SelectPlacement picks the region hosting the fewest distinct active users.
// Ties go to the region listed first. Regions at the per-region cap are skipped.
func (o *Orchestrator) SelectPlacement(ctx context.Context) (Placement, error) {
	if len(o.cfg.Zones) == 1 {
		zone := o.cfg.Zones[0]
		return Placement{Region: o.adapter.RegionOf(zone), Zone: zone}, nil
	}

	// First configured zone of each region, in config order
	var regions []Placement
	seen := make(map[string]bool)
	for _, zone := range o.cfg.Zones {
		region := o.adapter.RegionOf(zone)
		if seen[region] {
			continue
		}
		seen[region] = true
		regions = append(regions, Placement{Region: region, Zone: zone})
	}

	counts, err := o.servers.CountActiveUsersByRegion(ctx, o.now())
	if err != nil {
		return Placement{}, err
	}

	best := -1
	for i, p := range regions {
		n := counts[p.Region]
		if o.cfg.PerRegionUserCap > 0 && n >= o.cfg.PerRegionUserCap {
			continue
		}
		if best < 0 || n < counts[regions[best].Region] {
			best = i
		}
	}
	if best < 0 {
		return Placement{}, apperrors.DomainErrCapacityExhausted.
			WithMetadata("per_region_user_cap", o.cfg.PerRegionUserCap)
	}

	o.logger.WithContext(ctx).Debug("selected placement",
		slog.String("region", regions[best].Region),
		slog.String("zone", regions[best].Zone),
		slog.Int("active_users", counts[regions[best].Region]))
	return regions[best], nil
}

package zones

import (
	"fmt"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

// Validate checks a zone list against the load-time rules of §6.5: zero-area
// polygons and unknown zone types are rejected, ids must be unique. A
// failure here is a ZoneConfigError, fatal at startup.
func Validate(zones []*domain.Zone) error {
	seen := make(map[string]bool, len(zones))
	for _, z := range zones {
		if z.ID == "" {
			return domain.NewZoneConfigError("zone missing id")
		}
		if seen[z.ID] {
			return domain.NewZoneConfigError("duplicate zone id %q", z.ID)
		}
		seen[z.ID] = true

		if !domain.ValidZoneType(z.Type) {
			return domain.NewZoneConfigError("zone %q: unknown zone type %q", z.ID, z.Type)
		}
		if err := z.Polygon.Validate(); err != nil {
			return fmt.Errorf("zone %q: %w", z.ID, err)
		}
		if z.Type == domain.ZoneCrowdLimit && z.MaxOccupancy <= 0 {
			return domain.NewZoneConfigError("zone %q: CROWD_LIMIT zone requires max_occupancy > 0", z.ID)
		}
		if z.Type == domain.ZoneTimeRestricted && z.TimeWindow == nil {
			return domain.NewZoneConfigError("zone %q: TIME_RESTRICTED zone requires a time window", z.ID)
		}
		if z.SeverityWeight <= 0 {
			z.SeverityWeight = 1.0
		}
	}
	return nil
}

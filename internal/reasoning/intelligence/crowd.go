package intelligence

import (
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

type crowdDetector struct {
	cfg          Config
	wasAboveAt   time.Time // rising edge tracking
	lastEmitAt   time.Time
	wasAboveFlag bool
}

func newCrowdDetector(cfg Config) *crowdDetector {
	return &crowdDetector{cfg: cfg}
}

func (d *crowdDetector) step(now time.Time, objects map[uint64]*domain.ObjectState) *Candidate {
	count := 0
	for _, o := range objects {
		if o.Class == "person" && !o.Disappeared {
			count++
		}
	}

	above := count >= d.cfg.CrowdCount
	risingEdge := above && !d.wasAboveFlag
	d.wasAboveFlag = above
	if !above {
		return nil
	}

	if !risingEdge && now.Sub(d.lastEmitAt) < d.cfg.CrowdThrottle {
		return nil
	}
	d.lastEmitAt = now

	level := domain.SeverityMedium
	score := 0.5
	if count >= d.cfg.CrowdHighCount {
		level = domain.SeverityHigh
		score = 0.65
	}

	ctx := domain.NewContext().
		Set("count", domain.CtxNumber(float64(count)))

	return &Candidate{
		Type:     domain.EventCrowdForming,
		TrackIDs: nil,
		Duration: 0,
		Score:    domain.SeverityScore{Score: score, Level: level},
		Context:  ctx,
	}
}

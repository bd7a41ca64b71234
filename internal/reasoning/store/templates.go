package store

import (
	"fmt"
	"strings"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

// renderReasoning builds the human-readable reasoning string for one
// published event from its per-type template (§6.2) and context values.
func renderReasoning(eventType domain.EventType, ctx *domain.Context, duration float64) string {
	id := ctxNum(ctx, "id")
	v := ctxNum(ctx, "v")
	count := int(ctxNum(ctx, "count"))
	id1 := ctxNum(ctx, "id1")
	id2 := ctxNum(ctx, "id2")
	d := fmt.Sprintf("%.1f", duration)

	switch eventType {
	case domain.EventLoitering:
		return fmt.Sprintf("Subject ID %d exhibited loitering behavior for %ss. Low velocity (%.1f px/s) with extended dwell time.", int(id), d, v)
	case domain.EventZoneViolation:
		return fmt.Sprintf("Subject ID %d violated zone rules in monitored area. Active violation duration: %ss.", int(id), d)
	case domain.EventIntrusion:
		return fmt.Sprintf("Subject ID %d entered restricted area. Perimeter violation active for %ss.", int(id), d)
	case domain.EventFighting:
		return fmt.Sprintf("Rapid oscillating motion involving Subject IDs %d and %d. High-velocity physical interaction pattern observed for %ss.", int(id1), int(id2), d)
	case domain.EventTheftSuspected:
		return fmt.Sprintf("Subject ID %d exhibited suspicious object interaction followed by rapid departure (%.1f px/s). Concealment behavior detected.", int(id), v)
	case domain.EventCrowdForming:
		return fmt.Sprintf("Multiple subjects (%d+) converging in sector. Crowd density increasing.", count)
	case domain.EventAbandonedObject:
		return fmt.Sprintf("Static object detected with no associated track for %ss. Potential abandoned item.", d)
	case domain.EventRunning:
		// Not one of §6.2's seven listed templates; supplemented in the same
		// register for the RUNNING type the event catalog also names.
		return fmt.Sprintf("Subject ID %d moving at elevated velocity (%.1f px/s) for %ss. Rapid movement pattern detected.", int(id), v, d)
	default:
		return strings.TrimSpace(fmt.Sprintf("Event %s observed for %ss.", eventType, d))
	}
}

func ctxNum(ctx *domain.Context, key string) float64 {
	if ctx == nil {
		return 0
	}
	v, ok := ctx.Values[key]
	if !ok {
		return 0
	}
	return v.Num
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appcontext "github.com/reasoning-core/reasoning-core/internal/reasoning/context"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/config"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/coordinator"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/intelligence"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/stabilizer"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/zones"
)

// fixtureDetection is one detector record within a replay fixture frame.
type fixtureDetection struct {
	TrackID    uint64  `json:"track_id"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	ClassName  string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// fixtureFrame is one frame of a replay fixture: a frame shape, a
// wall-clock offset from the fixture's start, and the detections observed.
type fixtureFrame struct {
	FrameWidth  float64            `json:"frame_width"`
	FrameHeight float64            `json:"frame_height"`
	OffsetSec   float64            `json:"offset_seconds"`
	Detections  []fixtureDetection `json:"detections"`
}

// fixture is the replay file's top-level shape: an optional zone document
// and the ordered frames to feed through the coordinator.
type fixture struct {
	Zones  []config.ZoneConfig `json:"zones"`
	Frames []fixtureFrame      `json:"frames"`
}

func newReplayCommand() *cobra.Command {
	var fixturePath string
	var fps float64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed a JSON fixture of per-frame detections through the reasoning pipeline and print emitted events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(fixturePath, fps)
		},
	}
	cmd.Flags().StringVarP(&fixturePath, "fixture", "f", "", "path to a replay fixture JSON file (required)")
	cmd.Flags().Float64Var(&fps, "fps", 30.0, "assumed frame rate for velocity and missing-frame accounting")
	cmd.MarkFlagRequired("fixture")
	return cmd
}

func runReplay(fixturePath string, fps float64) error {
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("failed to parse fixture: %w", err)
	}

	zoneList, err := config.ToDomainZones(fx.Zones)
	if err != nil {
		return fmt.Errorf("invalid zone document in fixture: %w", err)
	}
	if err := zones.Validate(zoneList); err != nil {
		return fmt.Errorf("invalid zone document in fixture: %w", err)
	}

	logger := zap.NewNop()
	metrics := monitoring.NewMetrics()

	stab := stabilizer.New(stabilizer.DefaultConfig(), metrics, logger)
	ctxEngine := appcontext.New(appcontext.DefaultConfig(fps), fps, logger)
	zoneEngine := zones.New(zoneList, metrics, logger)
	weights, err := severity.DefaultWeights().Normalize()
	if err != nil {
		return fmt.Errorf("failed to normalize severity weights: %w", err)
	}
	scorer := severity.New(weights)
	dispatcher := intelligence.New(intelligence.DefaultConfig(), scorer, zoneEngine, logger)

	eventStore := store.New(store.DefaultConfig(), metrics, logger)
	eventStore.MarkAvailable()

	coord := coordinator.New(coordinator.DefaultConfig(), stab, ctxEngine, zoneEngine, scorer, dispatcher, eventStore, metrics, logger)

	start := time.Now()
	var totalEvents int
	for i, frame := range fx.Frames {
		now := start.Add(time.Duration(frame.OffsetSec * float64(time.Second)))
		shape := domain.FrameShape{Height: frame.FrameHeight, Width: frame.FrameWidth}

		dets := make([]domain.Detection, 0, len(frame.Detections))
		for _, d := range frame.Detections {
			dets = append(dets, domain.Detection{
				TrackID:    d.TrackID,
				BBox:       domain.Rectangle{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2},
				ClassName:  d.ClassName,
				Confidence: d.Confidence,
			})
		}

		result := coord.ProcessFrame(dets, shape, now)
		for _, e := range result.Events {
			totalEvents++
			fmt.Printf("frame %d (t=%.2fs): %s severity=%s tracks=%v zone=%q: %s\n",
				i, frame.OffsetSec, e.Type, e.Severity, e.TrackIDs, e.ZoneID, e.ReasoningText)
		}
	}

	fmt.Printf("\nreplay complete: %d frames, %d events emitted\n", len(fx.Frames), totalEvents)
	return nil
}

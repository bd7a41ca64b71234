package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestRunReplay_EmitsLoiteringEvent(t *testing.T) {
	var frameEntries string
	for i := 0; i < 600; i++ {
		if i > 0 {
			frameEntries += ","
		}
		frameEntries += fmt.Sprintf(
			`{"frame_width":1920,"frame_height":1080,"offset_seconds":%f,"detections":[{"track_id":1,"x1":100,"y1":100,"x2":150,"y2":200,"class":"person","confidence":0.9}]}`,
			float64(i)/30.0,
		)
	}
	fixtureJSON := `{"frames": [` + frameEntries + `]}`

	path := writeFixture(t, fixtureJSON)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	err = runReplay(path, 30.0)
	w.Close()
	os.Stdout = stdout
	out, readErr := io.ReadAll(r)
	require.NoError(t, readErr)

	assert.NoError(t, err)
	assert.Contains(t, string(out), "LOITERING")
}

func TestRunReplay_RejectsInvalidZoneDocument(t *testing.T) {
	path := writeFixture(t, `{
		"zones": [{"id": "bad", "type": "RESTRICTED", "points": [{"x":0,"y":0},{"x":1,"y":0}]}],
		"frames": []
	}`)

	err := runReplay(path, 30.0)
	assert.Error(t, err)
}

func TestRunReplay_MissingFile(t *testing.T) {
	err := runReplay("/nonexistent/fixture.json", 30.0)
	assert.Error(t, err)
}

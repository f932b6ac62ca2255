package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// UpdateSnapshotsEnv names the environment variable that makes MatchesFile
// rewrite golden files instead of comparing.
const UpdateSnapshotsEnv = "DANMAKU_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the objects attached to a surface.
type Snapshot struct {
	Viewport [2]float64   `json:"viewport"`
	Objects  []ObjectNode `json:"objects,omitempty"`
}

// ObjectNode is one serialized render object.
type ObjectNode struct {
	ID      string     `json:"id"`
	Text    string     `json:"text"`
	Color   string     `json:"color,omitempty"`
	Visible bool       `json:"visible"`
	Offset  [2]float64 `json:"offset"`
	Size    [2]float64 `json:"size"`
}

// CaptureSnapshot records the surface's attached objects in draw order.
// IDs count per visual type ("scroll#0", "top#0", ...).
func CaptureSnapshot(s *RecordingSurface) *Snapshot {
	size := s.Size()
	snap := &Snapshot{Viewport: [2]float64{round2(size.Width), round2(size.Height)}}
	counts := make(map[string]int)
	for _, obj := range s.children {
		typ := obj.Type.String()
		id := fmt.Sprintf("%s#%d", typ, counts[typ])
		counts[typ]++

		node := ObjectNode{
			ID:      id,
			Text:    obj.Item.Text,
			Visible: obj.Visible,
			Offset:  [2]float64{round2(obj.Position.X), round2(obj.Position.Y)},
		}
		if obj.Bound {
			node.Color = obj.Item.Color.Hex()
			m := obj.Measure()
			node.Size = [2]float64{round2(m.Width), round2(m.Height)}
		}
		snap.Objects = append(snap.Objects, node)
	}
	return snap
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When
// DANMAKU_UPDATE_SNAPSHOTS=1 is set, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to path, creating directories as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a line diff between this snapshot and other, or the empty
// string if they are equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := marshalSnapshot(s)
	b, _ := marshalSnapshot(other)
	if bytes.Equal(a, b) {
		return ""
	}
	return lineDiff(string(b), string(a))
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lineDiff lists the lines that differ, position by position.
func lineDiff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var buf strings.Builder
	buf.WriteString("--- expected\n+++ actual\n")
	for i := 0; i < max(len(expectedLines), len(actualLines)); i++ {
		var e, a string
		if i < len(expectedLines) {
			e = expectedLines[i]
		}
		if i < len(actualLines) {
			a = actualLines[i]
		}
		if e == a {
			continue
		}
		if i < len(expectedLines) {
			fmt.Fprintf(&buf, "-%s\n", e)
		}
		if i < len(actualLines) {
			fmt.Fprintf(&buf, "+%s\n", a)
		}
	}
	return buf.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

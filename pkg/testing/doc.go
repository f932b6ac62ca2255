// Package testing provides deterministic doubles for driving the overlay
// without a real render sink.
//
// # Quick Start
//
// Create a tester, queue a dataset, and pump frames:
//
//	func TestBurst(t *testing.T) {
//	    tester := dtesting.NewOverlayTester(overlay.Options{})
//	    tester.SetData(item.New("hello", 0, item.Scroll))
//
//	    tester.Pump()                       // retrieves "hello"
//	    tester.PumpFor(16 * time.Millisecond) // places it
//
//	    if n := tester.Controller().VisibleCount(); n != 1 {
//	        t.Errorf("VisibleCount() = %d, want 1", n)
//	    }
//	}
//
// # Snapshot Testing
//
// Capture and compare the attached render objects:
//
//	snapshot := tester.CaptureSnapshot()
//	snapshot.MatchesFile(t, "testdata/burst.snapshot.json")
//
// Update snapshots with:
//
//	DANMAKU_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Playback Time
//
// Playback time is the fake clock's elapsed time since Epoch:
//
//	tester.Clock().Advance(500 * time.Millisecond)
//	tester.Pump() // ticks at 500ms
package testing

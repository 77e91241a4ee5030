package factory

import (
	"time"

	"github.com/francismars/live/internal/dependencies/mocks"
	"github.com/francismars/live/internal/services/scheduler"
	"github.com/francismars/live/internal/storage/memory"
	"github.com/francismars/live/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Loop intervals are shrunk so game lifecycle tests finish quickly; the
// countdown is skipped.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	schedCfg := scheduler.Config{
		SimTick:           2 * time.Millisecond,
		BroadcastTick:     time.Millisecond,
		CountdownFrom:     -1,
		CountdownInterval: time.Millisecond,
		RematchDelay:      2 * time.Millisecond,
	}

	app := newWithDependencies(store, mockClock, mockRandom, schedCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

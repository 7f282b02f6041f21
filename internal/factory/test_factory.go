package factory

import (
	"context"
	"time"

	"github.com/ludoduel/ludo-server/internal/dependencies/mocks"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/realtime"
	"github.com/ludoduel/ludo-server/internal/storage/memory"
	"github.com/ludoduel/ludo-server/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	MockIDs    *mocks.MockIDs
	Events     *testutil.EventRecorder
}

// fanOut publishes to the in-process hubs and records every event
type fanOut []realtime.Notifier

func (f fanOut) Publish(ctx context.Context, event model.ChangeEvent) error {
	for _, n := range f {
		if err := n.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(Config{})
}

// NewTestAppWithConfig creates a test App using the given service configuration
func NewTestAppWithConfig(cfg Config) *TestApp {
	logger := testutil.NopLogger()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockIDs := mocks.NewMockIDs("id")
	events := testutil.NewEventRecorder()
	hubs := realtime.NewHubManager(logger)

	app := newWithDependencies(dependencies{
		store:    memory.New(),
		clock:    mockClock,
		random:   mockRandom,
		ids:      mockIDs,
		hubs:     hubs,
		notifier: fanOut{realtime.NewLocalNotifier(hubs, logger), events},
		logger:   logger,
	}, cfg)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		MockIDs:    mockIDs,
		Events:     events,
	}
}

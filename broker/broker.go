package broker

import (
	"sync"

	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/spec/broker"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var _ broker.Producer = &LogProducer{}
var _ broker.Producer = &MemoryProducer{}

// LogProducer only logs events. Used in development when no broker is configured
type LogProducer struct {
	Logger *zap.Logger
}

func (l *LogProducer) Close() {}

func (l *LogProducer) PublishEvent(e *spec.Event) error {
	l.Logger.Info("Subscription event",
		zap.String("Type", string(e.Type)),
		zap.String("SubscriptionID", e.SubscriptionID),
		zap.String("PlanID", e.PlanID),
		zap.String("PreviousPlanID", e.PreviousPlanID),
	)
	return nil
}

// MemoryProducer keeps published events in memory
type MemoryProducer struct {
	mu     sync.Mutex
	events []spec.Event
}

func (m *MemoryProducer) Close() {}

func (m *MemoryProducer) PublishEvent(e *spec.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

// Events returns a copy of the published events, optionally filtered by type
func (m *MemoryProducer) Events(types ...spec.EventType) []spec.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Filter(m.events, func(e spec.Event, _ int) bool {
		return len(types) == 0 || lo.Contains(types, e.Type)
	})
}

package broker

import (
	"github.com/zllovesuki/rtdn/spec"
)

// Producer defines a producer publishing domain events via message broker
type Producer interface {
	Close()
	PublishEvent(e *spec.Event) error
}

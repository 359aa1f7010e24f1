package bus

import (
	"time"

	"github.com/zeusync/locomotion/internal/core/observability/log"
)

// LogObserver writes every delivery to a logger at debug level and handler
// failures at warn.
type LogObserver struct {
	Logger log.Log
}

func (o LogObserver) OnPublish(string, Event) {}

func (o LogObserver) OnDelivered(topic string, event Event, handlers int, err error, took time.Duration) {
	fields := []log.Field{
		log.String("topic", topic),
		log.String("type", event.Type()),
		log.Uint64("tick", event.Tick()),
		log.Int("handlers", handlers),
		log.Duration("took", took),
	}
	if err != nil {
		o.Logger.Warn("event handler failed", append(fields, log.Error(err))...)
		return
	}
	o.Logger.Debug("event delivered", fields...)
}

package worker

import (
	"context"
	"time"
)

// QueueGauge periodically publishes the dispatch queue depth
type QueueGauge struct {
	interval time.Duration
	depth    func() int
	publish  func(int)

	loop
}

// NewQueueGauge samples depth every interval and hands it to publish
func NewQueueGauge(interval time.Duration, depth func() int, publish func(int)) *QueueGauge {
	if interval <= 0 {
		interval = time.Second
	}
	return &QueueGauge{interval: interval, depth: depth, publish: publish}
}

// Start starts the sampling loop
func (g *QueueGauge) Start(ctx context.Context) error {
	return g.start(ctx, g.Name(), g.run)
}

// Stop halts sampling
func (g *QueueGauge) Stop() error {
	g.stop()
	return nil
}

// Name returns the worker name for identification
func (g *QueueGauge) Name() string {
	return "QueueGauge"
}

func (g *QueueGauge) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.publish(g.depth())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.publish(g.depth())
		}
	}
}

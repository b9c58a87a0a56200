package framegraph

import "log/slog"

// Option configures a Graph during creation.
//
// Example:
//
//	g := framegraph.New(device,
//	    framegraph.WithName("main"),
//	    framegraph.WithLogger(slog.Default()),
//	)
type Option func(*options)

// options holds optional configuration for Graph creation.
type options struct {
	name       string
	logger     *slog.Logger
	idleQueues []Queue
}

// defaultOptions returns the default graph options.
func defaultOptions() options {
	return options{
		name:       "framegraph",
		logger:     nil, // package logger
		idleQueues: []Queue{QueueGraphics, QueuePresent},
	}
}

// WithName sets the graph name used in logs and semaphore labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets a logger for this graph only. Without it the graph logs
// through the package logger configured with SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithIdleQueues sets the queues drained at the end of every frame.
// The default drains the graphics and the present queue.
func WithIdleQueues(queues ...Queue) Option {
	return func(o *options) {
		o.idleQueues = append([]Queue(nil), queues...)
	}
}

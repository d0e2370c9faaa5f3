package stdio

import (
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
)

// StdioOption defines a function type for configuring StdioServer
type StdioOption func(*StdioServer)

// WithLogger sets the server logger. Logs must not go to stdout.
func WithLogger(logger *logging.Logger) StdioOption {
	return func(s *StdioServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStdioContextFunc sets a function that customizes the session context.
// It is called once per Listen.
func WithStdioContextFunc(fn StdioContextFunc) StdioOption {
	return func(s *StdioServer) {
		s.contextFunc = fn
	}
}

// WithShutdownFunc registers a hook run once when the session closes,
// after the last in-flight request has been answered.
func WithShutdownFunc(fn func() error) StdioOption {
	return func(s *StdioServer) {
		s.shutdown = fn
	}
}

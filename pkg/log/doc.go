// Package log provides the logging abstraction used by datapost components.
//
// The Logger interface decouples the library from any particular logging
// backend. A zerolog console adapter and a no-op logger are provided:
//
//	logger := log.NewConsole()
//	logger.Info("stream started", log.String("sink", "kafka"))
//
// Implement the Logger interface to route datapost logs through existing
// logging infrastructure.
package log

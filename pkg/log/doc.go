// Package log provides the global structured logger and component child
// loggers used across pgraph.
package log

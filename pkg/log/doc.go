// Package log provides structured logging via zerolog: a global logger
// initialized once with Init, plus component/resource-scoped child loggers.
package log

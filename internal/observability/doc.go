// Package observability provides structured logging and distributed
// tracing for the gateway. All components receive a Logger by injection;
// passing nil yields a no-op logger so library code never needs to guard
// against a missing logger.
package observability

// Package pkg provides shared utilities for the prpsweep packages.
//
// This package contains common functionality used by the sweep engine, the
// queue-pair driver, and the simulated controller, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for sweep outcomes and command failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentEngine, "sweep started", "seed", 51)
//
// # Errors
//
// Sweep outcomes are sentinel values, wrapped with context by the caller:
//
//	if errors.Is(err, pkg.ErrDataMiscompare) {
//	    // Inspect dumped artifacts
//	}
package pkg

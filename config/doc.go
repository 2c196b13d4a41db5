// Package config assembles run settings from defaults, optional .env files
// and PRPSWEEP_* environment variables.
//
// Byte sizes accept human units ("4KiB", "512", "8 kB"), durations use
// [time.ParseDuration] syntax, and booleans use [strconv.ParseBool]. The
// command line overrides whatever Load returns.
package config

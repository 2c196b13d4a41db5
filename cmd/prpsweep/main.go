// Command prpsweep writes and reads back single-page multi-block payloads at
// every dword-aligned page offset and verifies the data and metadata.
//
// Usage:
//
//	prpsweep run [flags]              # sweep the simulated controller
//	prpsweep run --backend linux --device /dev/nvme0n1
//	prpsweep plan [--steps] [flags]   # print what a sweep would execute
//	prpsweep version
//
// Every run flag can also be set with a PRPSWEEP_* variable, in the
// environment or in a .env file.
package main

import "github.com/tebeka/atexit"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(exitCode(err))
	}
	atexit.Exit(0)
}

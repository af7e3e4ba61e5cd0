package overlay

// Package overlay reconciles the device-tree overlay config variable so
// that the UART-enabling overlay token is present or absent as requested.
//
// A device-level variable overrides the fleet-level one. The reconciler
// only ever creates or updates the device-level variable; it performs at
// most one remote write per invocation and skips the write when the
// effective set already matches.

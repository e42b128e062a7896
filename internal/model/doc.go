// Package model defines the domain types shared across the FlareSolverr
// service: browser sessions, launch drivers, and the CLIError/exit-code
// taxonomy used by the command layer.
//
// All session state is process-lifetime only. Sessions are reconstructed
// from nothing at startup; there is no on-disk persistence.
package model

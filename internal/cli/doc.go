// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It layers
// an optional HCL config file, flags and positional paths into the
// application's build configuration.
package cli

// Package app contains the library build pipeline. It wires the logic
// loader, merge engine, kernel extraction, output planner, generation
// coordinator, toolchain and reconciler into one run, decoupled from any
// specific entrypoint like a CLI.
package app

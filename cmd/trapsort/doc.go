// Package main hosts the trapsort CLI entrypoint and command graph.
//
// Each pipeline stage is one command. Commands resolve configuration once,
// open a run-scoped logger and the run ledger, and hand the stage to
// pipeline.Runner; the heavy lifting lives in the internal packages.
package main

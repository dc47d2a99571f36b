// Package cli assembles the filtersync command-line application.
//
// It wires the Cobra root command, Viper-backed configuration with an
// embedded default profile, and the zap logger consumed by the pipeline.
package cli

// Package utils exposes reusable helpers consumed across the CLI.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that
// integrate Viper, environment variables, and zap logging, plus a
// FlushingWriter used to surface rewrite-engine output promptly.
package utils

// Package config loads compositor settings from TOML.
//
// A file only needs the keys it changes; everything else keeps the values
// of [Default]:
//
//	[compositor]
//	throttle = "16ms"
//
//	[texture]
//	budget_mb = 128
//
//	[log]
//	level = "debug"
//
// [Config.Options] turns a validated configuration into controller
// options.
package config

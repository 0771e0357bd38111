// Package config binds the termination protocol's environment variables to
// engine options. Absent, empty, or malformed values silently fall back to
// defaults: a bad setting degrades the topology, it never takes the job down.
package config

import (
	"github.com/spf13/viper"

	"github.com/NirjharDeb/treedone/termination"
)

// Environment variable names understood by FromEnv.
const (
	EnvGroupSize = "GLOBAL_GROUP_SIZE"   // leaf group size G (>= 1)
	EnvBranchK   = "GLOBAL_BRANCH_K"     // branching factor K (>= 2)
	EnvDebug     = "GLOBAL_DONE_DEBUG"   // per-run debug toggle (0/1)
	EnvVariant   = "GLOBAL_DONE_VARIANT" // star | hstar | tree | dynamic
	EnvExitMode  = "GLOBAL_EXIT_MODE"    // barrier | rootlast | global
)

// Defaults applied when a variable is unset or invalid.
const (
	DefaultGroupSize = 8
	DefaultBranchK   = 8
)

// FromEnv reads the process environment and returns resolved engine options.
// Every PE of a job must see identical environment values; the launcher is
// responsible for propagating them.
func FromEnv() termination.Options {
	v := viper.New()
	v.SetDefault("group_size", DefaultGroupSize)
	v.SetDefault("branch_k", DefaultBranchK)
	v.SetDefault("debug", false)
	v.SetDefault("variant", termination.VariantHStar.String())
	v.SetDefault("exit_mode", termination.ExitBarrier.String())

	// Bind errors only occur for empty binding names; these are constant.
	_ = v.BindEnv("group_size", EnvGroupSize)
	_ = v.BindEnv("branch_k", EnvBranchK)
	_ = v.BindEnv("debug", EnvDebug)
	_ = v.BindEnv("variant", EnvVariant)
	_ = v.BindEnv("exit_mode", EnvExitMode)

	opt := termination.Options{
		LeafGroupSize: v.GetInt("group_size"),
		BranchFactor:  v.GetInt("branch_k"),
		Debug:         v.GetBool("debug"),
	}

	// GetInt yields 0 for non-numeric strings; out-of-range values coerce in
	// the engine, but normalize here too so callers see the effective config.
	if opt.LeafGroupSize < 1 {
		opt.LeafGroupSize = DefaultGroupSize
	}
	if opt.BranchFactor < 2 {
		opt.BranchFactor = DefaultBranchK
	}

	if variant, err := termination.ParseVariant(v.GetString("variant")); err == nil {
		opt.Variant = variant
	}
	if exit, err := termination.ParseExitPolicy(v.GetString("exit_mode")); err == nil {
		opt.Exit = exit
	}
	return opt
}

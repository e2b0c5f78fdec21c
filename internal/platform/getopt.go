package platform

import "github.com/spf13/pflag"

// NewFlagSet returns a pflag.FlagSet configured the way cmd/quillctl expects
// its subcommands to parse arguments: GNU-style long/short options, errors
// returned rather than printed (the caller decides how to report them).
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/sunholo/quillmod/internal/inspect"
)

func runCache(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: quillctl cache stats [--path dir] [flags]")
	}
	switch args[0] {
	case "stats":
		return runCacheStats(args[1:])
	default:
		return fmt.Errorf("unknown cache subcommand %q", args[0])
	}
}

func runCacheStats(args []string) error {
	fs := flag.NewFlagSet("cache stats", flag.ContinueOnError)
	searchDir := fs.StringP("path", "p", ".", "directory to search for modules")
	asJSON := fs.Bool("json", false, "print as JSON")
	preload := fs.StringSliceP("load", "l", nil, "module specs to load before reporting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l, err := newApplicationLoader(*searchDir, false)
	if err != nil {
		return err
	}
	for _, spec := range *preload {
		if _, err := l.Load(spec, false, ""); err != nil {
			fmt.Printf("%s failed to load %s: %v\n", yellow("warning:"), spec, err)
		}
	}

	ins := inspect.New(l)
	stats := ins.Statistics()
	if *asJSON {
		out, err := inspect.ToJSON(stats)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Printf("%s %d\n", cyan("loaded modules:"), stats.LoadedModules)
	fmt.Printf("%s %d\n", cyan("cache hits:"), stats.CacheHits)
	fmt.Printf("%s %d\n", cyan("cache misses:"), stats.CacheMisses)
	fmt.Printf("%s %d\n", cyan("cache evictions:"), stats.CacheEvicts)
	fmt.Printf("%s %d\n", cyan("hooks run:"), stats.HooksRun)
	fmt.Printf("%s %d\n", cyan("hook failures:"), stats.HookFailures)
	return nil
}

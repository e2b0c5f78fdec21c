package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/sunholo/quillmod/internal/config"
	"github.com/sunholo/quillmod/internal/loader"
	"github.com/sunholo/quillmod/internal/logging"
	"github.com/sunholo/quillmod/internal/module"
)

func newApplicationLoader(searchPath string, debug bool) (*loader.Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg := config.Default(home)
	cfg.Debug = debug
	cfg.ModulePaths = append(cfg.ModulePaths, searchPath)

	logLevel := logging.LevelInfo
	if !debug {
		logLevel = logging.LevelWarn
	}
	logger := logging.New(os.Stderr, logLevel)

	root := loader.NewBootstrap(func(s string) { fmt.Print(s) })
	system := loader.NewSystem(root, nil, cfg, logger)
	return loader.NewApplication(system, []string{searchPath}, cfg, logger), nil
}

func runLoad(args []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	searchDir := fs.StringP("path", "p", ".", "directory to search for modules")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: quillctl load [--path dir] <spec>")
	}
	spec := fs.Arg(0)

	l, err := newApplicationLoader(*searchDir, *debug)
	if err != nil {
		return err
	}
	m, err := l.Load(spec, false, "")
	if err != nil {
		return err
	}

	fmt.Printf("%s %s (%s)\n", green("loaded"), bold(spec), m.State())
	for _, e := range m.Exports() {
		vis := "private"
		if e.Visibility == module.Public {
			vis = "public"
		}
		fmt.Printf("  %s %s : %s\n", cyan(vis), e.Name, yellow(e.Value.TypeName()))
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/sunholo/quillmod/internal/bundle"
	"github.com/sunholo/quillmod/internal/chunk"
	"github.com/sunholo/quillmod/internal/langparse"
)

func runBundle(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: quillctl bundle <build|exec> ...")
	}
	switch args[0] {
	case "build":
		return runBundleBuild(args[1:])
	case "exec":
		return runBundleExec(args[1:])
	default:
		return fmt.Errorf("unknown bundle subcommand %q", args[0])
	}
}

func compileFile(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := langparse.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	result, err := chunk.Compile(prog)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return result.Chunk.Serialize(), nil
}

func runBundleBuild(args []string) error {
	fs := flag.NewFlagSet("bundle build", flag.ContinueOnError)
	name := fs.String("name", "bundle", "bundle name")
	version := fs.String("version", "0.1.0", "bundle version")
	entry := fs.String("entry", "", "entry module name (bundle name, not path)")
	recursive := fs.Bool("recursive", true, "resolve dependencies recursively")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: quillctl bundle build [flags] <dir> <out.qpkg>")
	}
	dir := fs.Arg(0)
	out := fs.Arg(1)

	resolver := &bundle.FileResolver{Root: dir}
	builder := bundle.NewBuilder(resolver)
	builder.SetMetadata(*name, *version, bundle.TypeApplication, *entry, "quillctl", "any", "", time.Now().UnixNano())

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".ql") {
			continue
		}
		path := filepath.Join(dir, de.Name())
		bc, err := compileFile(path)
		if err != nil {
			return err
		}
		modName := strings.TrimSuffix(de.Name(), ".ql")
		builder.AddModule(path, modName, bc)
		if err := builder.AddDependencies(path, *recursive, compileFile); err != nil {
			return err
		}
	}

	for _, w := range builder.Warnings() {
		fmt.Printf("%s %s\n", yellow("warning:"), w)
	}

	data, err := builder.Build()
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return err
	}
	fmt.Printf("%s wrote %s (%d bytes)\n", green("built"), out, len(data))
	return nil
}

func runBundleExec(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: quillctl bundle exec <bundle.qpkg>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	result, err := bundle.Execute(data, func(s string) { fmt.Print(s) })
	if err != nil {
		// Every error bundle.Execute returns exits 70, distinct from the
		// generic exit-1 path in main.go: a bundle that fails to open, an
		// entry-point module that fails to load or run, and a failure
		// raised by main itself all get the same code. Only a bundle file
		// that cannot be read takes the generic path.
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(70)
	}
	for _, w := range result.Warnings {
		fmt.Printf("%s %s\n", yellow("warning:"), w)
	}
	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}
	return nil
}

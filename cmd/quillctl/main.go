// Command quillctl is the operator-facing CLI over the module runtime:
// loading a module and printing its exports, inspecting a loader tier
// (optionally as an interactive readline session), building and running
// bundles, and reporting cache statistics.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	// Version info, set by ldflags during build.
	Version = "dev"
	Commit  = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	helpFlag := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	args := flag.Args()
	command := args[0]
	rest := args[1:]

	var err error
	switch command {
	case "load":
		err = runLoad(rest)
	case "inspect":
		err = runInspect(rest)
	case "bundle":
		err = runBundle(rest)
	case "cache":
		err = runCache(rest)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("quillctl %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
}

func printHelp() {
	fmt.Println(bold("quillctl - module runtime control"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  quillctl <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s <spec>                 Load a module and print its exports\n", cyan("load"))
	fmt.Printf("  %s [--path dir]       Inspect a loader tier's cached modules\n", cyan("inspect"))
	fmt.Printf("  %s build <dir> <out>   Build a bundle from a module tree\n", cyan("bundle"))
	fmt.Printf("  %s exec <bundle>        Execute a built bundle\n", cyan("bundle"))
	fmt.Printf("  %s stats [--path dir]    Print loader cache statistics\n", cyan("cache"))
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --version        Print version information")
	fmt.Println("  --help           Show this help message")
}

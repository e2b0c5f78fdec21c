package main

import (
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/peterh/liner"

	"github.com/sunholo/quillmod/internal/inspect"
)

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	searchDir := fs.StringP("path", "p", ".", "directory to search for modules")
	interactive := fs.BoolP("interactive", "i", false, "open an interactive inspection shell")
	preload := fs.StringSliceP("load", "l", nil, "module specs to load before inspecting")
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
	if !*interactive {
		return printModules(ins)
	}
	return runInspectShell(ins)
}

func printModules(ins *inspect.Inspector) error {
	mods := ins.Modules()
	if len(mods) == 0 {
		fmt.Println("no modules loaded")
		return nil
	}
	for _, m := range mods {
		fmt.Printf("%s %s  state=%s refs=%d exports=%d\n", cyan("module"), bold(m.Path), m.State, m.RefCount, len(m.Exports))
	}
	return nil
}

func runInspectShell(ins *inspect.Inspector) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCompleter(func(s string) []string {
		commands := []string{"list", "show", "search", "deps", "stats", "help", "quit"}
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, s) {
				out = append(out, c)
			}
		}
		return out
	})

	fmt.Println(bold("quillctl inspect") + " - type 'help' for commands, 'quit' to exit")
	for {
		input, err := line.Prompt("inspect> ")
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if !handleInspectCommand(ins, input) {
			return nil
		}
	}
}

func handleInspectCommand(ins *inspect.Inspector, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "quit", "exit", ":q":
		return false
	case "help":
		fmt.Println("Commands: list, show <path>, search <glob>, deps, stats, quit")
	case "list":
		_ = printModules(ins)
	case "show":
		if len(fields) < 2 {
			fmt.Println("usage: show <path>")
			return true
		}
		m, ok := ins.Module(fields[1])
		if !ok {
			fmt.Printf("%s no such module: %s\n", red("error:"), fields[1])
			return true
		}
		out, _ := inspect.ToJSON(m)
		fmt.Println(out)
	case "search":
		if len(fields) < 2 {
			fmt.Println("usage: search <glob>")
			return true
		}
		matches, err := ins.Search(fields[1])
		if err != nil {
			fmt.Printf("%s %v\n", red("error:"), err)
			return true
		}
		for _, m := range matches {
			fmt.Println(m.Path)
		}
	case "deps":
		for _, e := range ins.Dependencies() {
			fmt.Printf("%s -> %s\n", e.From, e.To)
		}
	case "stats":
		out, _ := inspect.ToJSON(ins.Statistics())
		fmt.Println(out)
	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}
	return true
}

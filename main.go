// Command stackvm is the host loader: it reads a bytecode image from a
// file, bootstraps the default io/sys built-in namespace, and runs it to
// completion. There is no keystroke-driven stepper here, just a one-shot
// run plus a single styled diagnostic on a fatal error. Grounded on the
// teacher's root main.go (flag parsing, file read, VM construction,
// run-to-completion, fatal print) and on wippyai-wasm-runtime/cmd/run/
// interactive.go's lipgloss style vars for the error rendering.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"stackvm/vm"
)

var errorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FF6B6B"))

func main() {
	debugFlag := flag.Bool("debug", false, "enable per-opcode trace logging")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: stackvm [-debug] <file>")
		os.Exit(1)
	}

	if *debugFlag {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		vm.SetLogger(logger)
	}

	image, err := os.ReadFile(args[0])
	if err != nil {
		fail(fmt.Errorf("read %s: %w", args[0], err))
	}

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	machine, err := vm.NewVM(image, defaultBuiltins(stdout), *debugFlag)
	if err != nil {
		fail(err)
	}

	if err := machine.Run(); err != nil {
		stdout.Flush()
		fail(err)
	}
}

// defaultBuiltins wires the one host namespace this build exposes inside
// the VM's contract: io.print/io.println writing to stdout, and sys.exit
// ending the process cleanly rather than via panic/recover. Grounded on
// original_source/tools/vm.py's `std` dict in VirtualMachine.__init__.
func defaultBuiltins(w *bufio.Writer) vm.BuiltinTree {
	print := func(args []any) {
		fmt.Fprint(w, formatArgs(args))
		w.Flush()
	}
	println := func(args []any) {
		fmt.Fprintln(w, formatArgs(args))
		w.Flush()
	}
	exit := func() {
		w.Flush()
		os.Exit(0)
	}
	return vm.DefaultBuiltins(print, println, exit)
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("fatal: %v", err)))
	os.Exit(1)
}

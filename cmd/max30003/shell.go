package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"

	"github.com/mikesmitty/max30003"
)

var errQuit = errors.New("quit")

type shell struct {
	dev *max30003.Dev
	w   io.Writer
}

type command struct {
	help string
	run  func(sh *shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":     {"list commands", (*shell).help},
		"init":     {"reset the chip and wait for it to come up", (*shell).initialize},
		"config":   {"write the acquisition configuration", (*shell).config},
		"sync":     {"start acquisition", (*shell).sync},
		"status":   {"read STATUS", (*shell).status},
		"info":     {"read INFO", (*shell).info},
		"regs":     {"dump every readable register", (*shell).regs},
		"read":     {"read <reg>: read a register by name or address", (*shell).read},
		"write":    {"write <reg> <word>: write a register", (*shell).write},
		"drain":    {"drain [n]: burst read up to n FIFO words", (*shell).drain},
		"rtor":     {"read the last R-to-R interval", (*shell).rtor},
		"shutdown": {"power down the ECG channel", (*shell).shutdown},
		"quit":     {"leave the shell", func(*shell, []string) error { return errQuit }},
	}
}

func runShell(dev *max30003.Dev) error {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	sh := &shell{dev: dev, w: os.Stdout}
	for {
		line, err := term.Prompt("max30003> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("could not read command: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		term.AppendHistory(line)

		err = sh.exec(line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(sh.w, "error: %v\n", err)
		}
	}
}

func complete(line string) []string {
	var out []string
	for name := range commands {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (sh *shell) exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(sh, args[1:])
}

func (sh *shell) help([]string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sh.w, "%-9s %s\n", name, commands[name].help)
	}
	return nil
}

func (sh *shell) initialize([]string) error {
	if err := sh.dev.Initialize(); err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "%v\n", sh.dev.State())
	return nil
}

func (sh *shell) config([]string) error {
	return sh.dev.Configure(nil)
}

func (sh *shell) sync([]string) error {
	return sh.dev.Synchronize()
}

func (sh *shell) status([]string) error {
	s, err := sh.dev.ReadStatus()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "0x%06X %v\n", s.Word(), s)
	return nil
}

func (sh *shell) info([]string) error {
	i, err := sh.dev.Info()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "ident=0b%04b revision=%d valid=%v\n", i.Ident, i.Revision, i.Valid())
	return nil
}

func (sh *shell) regs([]string) error {
	for _, r := range max30003.Registers() {
		if !r.Readable() || r.Addr == max30003.RegECGFIFO || r.Addr == max30003.RegECGFIFOBurst {
			continue
		}
		w, err := sh.dev.ReadRegister(r.Addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.w, "%-16v %s 0x%06X\n", r, r.Access, w)
	}
	return nil
}

func (sh *shell) read(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: read <reg>")
	}
	r, err := register(args[0])
	if err != nil {
		return err
	}
	w, err := sh.dev.ReadRegister(r.Addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "%v 0x%06X\n", r, w)
	vs := r.Decode(w)
	for _, f := range r.Fields {
		fmt.Fprintf(sh.w, "  %-12s %d\n", f.Name, vs[f.Name])
	}
	return nil
}

func (sh *shell) write(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: write <reg> <word>")
	}
	r, err := register(args[0])
	if err != nil {
		return err
	}
	w, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("invalid word %q: %w", args[1], err)
	}
	return sh.dev.WriteRegister(r.Addr, uint32(w))
}

func (sh *shell) drain(args []string) error {
	n := 32
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid word count %q: %w", args[0], err)
		}
		n = v
	}
	samples, term, err := sh.dev.DrainFIFO(n)
	for _, s := range samples {
		fmt.Fprintf(sh.w, "%8d %v\n", s.Value, s.Tag)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "%s samples, %v\n", humanize.Comma(int64(len(samples))), term)
	return nil
}

func (sh *shell) rtor([]string) error {
	r, err := sh.dev.ReadRtoR()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "%d ticks, %v, %.1f bpm\n", r.Ticks, r.Interval, r.BPM())
	return nil
}

func (sh *shell) shutdown([]string) error {
	return sh.dev.Shutdown()
}

// register resolves a register from its name or its address.
func register(s string) (max30003.Register, error) {
	if addr, err := strconv.ParseUint(s, 0, 8); err == nil {
		return max30003.Lookup(max30003.Reg(addr))
	}
	return max30003.LookupName(strings.ToUpper(s))
}

// Command civctl is a thin driver over a civ.Map[string, string] snapshot
// file: stat prints occupancy, get reads a key, set writes one (creating
// the snapshot if it doesn't exist yet), del removes one.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"civlsm/civ"
	"civlsm/civ/codec"
	"civlsm/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "stat":
		return cmdStat(rest)
	case "get":
		return cmdGet(rest)
	case "set":
		return cmdSet(rest)
	case "del":
		return cmdDel(rest)
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "civctl: unknown command %q\n", cmd)
		printUsage(os.Stderr)
		return 2
	}
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, "usage: civctl <stat|get|set|del> <snapshot> [args...]")
}

func loadOrNew(path string) (*civ.Map[string, string], error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return civ.New[string, string](), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return civ.LoadMap[string, string](f, codec.String(), codec.String())
}

func save(path string, m *civ.Map[string, string]) error {
	var buf bytes.Buffer
	if err := m.WriteTo(&buf, codec.String(), codec.String()); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

func cmdStat(args []string) int {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: civctl stat <snapshot>")
		return 2
	}
	m, err := loadOrNew(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "civctl:", err)
		return 1
	}
	stats := m.Stats()
	fmt.Printf("len=%d tombs=%d allocated_capacity=%d live_capacity=%d\n",
		stats.Len, stats.Tombs, stats.AllocatedCapacity, stats.LiveCapacity)
	for _, lvl := range stats.Levels {
		fmt.Printf("  level[%d] capacity=%d live=%d tombs=%d\n", lvl.Index, lvl.Capacity, lvl.Live, lvl.Tombs)
	}
	return 0
}

func cmdGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: civctl get <snapshot> <key>")
		return 2
	}
	m, err := loadOrNew(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "civctl:", err)
		return 1
	}
	v, ok := m.Get(fs.Arg(1))
	if !ok {
		fmt.Fprintln(os.Stderr, "civctl: key not found")
		return 1
	}
	fmt.Println(v)
	return 0
}

func cmdSet(args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	hotSlotSize := fs.Int("hot-slot-size", config.Default().HotSlotSize, "HotSlot capacity for a newly created snapshot")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "usage: civctl set <snapshot> <key> <value>")
		return 2
	}
	path := fs.Arg(0)
	m, err := loadOrNew(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "civctl:", err)
		return 1
	}
	if m.Len() == 0 && m.Tombs() == 0 && *hotSlotSize != config.Default().HotSlotSize {
		cfg := config.Default()
		cfg.HotSlotSize = *hotSlotSize
		m = civ.NewWithConfig[string, string](cfg)
	}
	m.Insert(fs.Arg(1), fs.Arg(2))
	if err := save(path, m); err != nil {
		fmt.Fprintln(os.Stderr, "civctl:", err)
		return 1
	}
	return 0
}

func cmdDel(args []string) int {
	fs := flag.NewFlagSet("del", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: civctl del <snapshot> <key>")
		return 2
	}
	path := fs.Arg(0)
	m, err := loadOrNew(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "civctl:", err)
		return 1
	}
	if _, ok := m.Remove(fs.Arg(1)); !ok {
		fmt.Fprintln(os.Stderr, "civctl: key not found")
		return 1
	}
	if err := save(path, m); err != nil {
		fmt.Fprintln(os.Stderr, "civctl:", err)
		return 1
	}
	return 0
}

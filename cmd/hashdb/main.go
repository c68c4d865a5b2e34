// Command hashdb is the CLI surface over pkg/hashdb, pkg/scanstream and
// pkg/setalgebra: create/import/export/scan_hash/scan_list plus the
// nine set-algebra operations, in the teacher's cmd/cli style (a
// os.Args[1] switch over per-command flag.FlagSets).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/5l1v3r1/hashdb/pkg/hashdb"
	"github.com/5l1v3r1/hashdb/pkg/setalgebra"
	"github.com/sirupsen/logrus"
)

func commandFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(configPath())
	if err != nil {
		fatalf("config: %v", err)
	}
	if cfg.LogLevel != "" {
		if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logrus.SetLevel(lvl)
		}
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "create":
		cmdCreate(args, cfg)
	case "import":
		cmdImport(args)
	case "export":
		cmdExport(args)
	case "scan_hash":
		cmdScanHash(args)
	case "scan_list":
		cmdScanList(args)
	case "add":
		cmdAdd(args)
	case "add_multiple":
		cmdAddMultiple(args)
	case "add_repository":
		cmdAddRepository(args)
	case "add_range":
		cmdAddRange(args)
	case "intersect":
		cmdIntersect(args)
	case "intersect_hash":
		cmdIntersectHash(args)
	case "subtract":
		cmdSubtract(args)
	case "subtract_hash":
		cmdSubtractHash(args)
	case "subtract_repository":
		cmdSubtractRepository(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: hashdb <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  create <db>")
	fmt.Println("  import <db> <json-file>")
	fmt.Println("  export <db> <json-file>")
	fmt.Println("  scan_hash <db> <hex>")
	fmt.Println("  scan_list <db> <list-file>")
	fmt.Println("  add <out-db> <in-db>")
	fmt.Println("  add_multiple <out-db> <in-db>...")
	fmt.Println("  add_repository <out-db> <in-db> <repo>")
	fmt.Println("  add_range <out-db> <in-db> <lo:hi>")
	fmt.Println("  intersect <out-db> <in-db-a> <in-db-b>")
	fmt.Println("  intersect_hash <out-db> <in-db-a> <in-db-b>")
	fmt.Println("  subtract <out-db> <in-db-a> <in-db-b>")
	fmt.Println("  subtract_hash <out-db> <in-db-a> <in-db-b>")
	fmt.Println("  subtract_repository <out-db> <in-db> <repo>")
}

func configPath() string {
	if p := os.Getenv("HASHDB_CONFIG"); p != "" {
		return p
	}
	return "hashdb.yaml"
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func recordHistory(im *hashdb.ImportManager) {
	if err := im.AppendHistory(strings.Join(os.Args, " ")); err != nil {
		logrus.WithError(err).Warn("hashdb: failed to append history")
	}
}

func cmdCreate(args []string, cfg cliConfig) {
	fs := commandFlagSet("create")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fatalf("usage: hashdb create <db>")
	}
	settings := settingsFromConfig(cfg)
	if err := hashdb.Create(fs.Arg(0), settings); err != nil {
		fatalf("create: %v", err)
	}
	fmt.Printf("created %s\n", fs.Arg(0))
}

func cmdImport(args []string) {
	fs := commandFlagSet("import")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fatalf("usage: hashdb import <db> <json-file>")
	}
	im, err := hashdb.OpenImportManager(fs.Arg(0))
	if err != nil {
		fatalf("import: %v", err)
	}
	defer im.Close()

	f, err := os.Open(fs.Arg(1))
	if err != nil {
		fatalf("import: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	failures := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if msg := im.ImportJSON(line); msg != "" {
			fmt.Fprintf(os.Stderr, "import: line %d: %s\n", lineNo, msg)
			failures++
		}
	}
	if err := scanner.Err(); err != nil {
		fatalf("import: reading %s: %v", fs.Arg(1), err)
	}
	recordHistory(im)
	fmt.Printf("imported %s: %d lines, %d failures\n", fs.Arg(1), lineNo, failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func cmdExport(args []string) {
	fs := commandFlagSet("export")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fatalf("usage: hashdb export <db> <json-file>")
	}
	sm, err := hashdb.OpenScanManager(fs.Arg(0))
	if err != nil {
		fatalf("export: %v", err)
	}
	defer sm.Close()

	out, err := os.Create(fs.Arg(1))
	if err != nil {
		fatalf("export: %v", err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	defer w.Flush()

	fmt.Fprintf(w, "# command: %s\n", strings.Join(os.Args, " "))

	for h, err := sm.FirstHash(); ; h, err = sm.NextHash(h) {
		if err != nil {
			fatalf("export: %v", err)
		}
		if len(h) == 0 {
			break
		}
		line, err := sm.ExportHashJSON(h)
		if err != nil {
			fatalf("export: %v", err)
		}
		fmt.Fprintln(w, line)
	}
	for h, err := sm.FirstSource(); ; h, err = sm.NextSource(h) {
		if err != nil {
			fatalf("export: %v", err)
		}
		if len(h) == 0 {
			break
		}
		line, err := sm.ExportSourceJSON(h)
		if err != nil {
			fatalf("export: %v", err)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Printf("exported %s\n", fs.Arg(1))
}

func cmdScanHash(args []string) {
	fs := commandFlagSet("scan_hash")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fatalf("usage: hashdb scan_hash <db> <hex>")
	}
	sm, err := hashdb.OpenScanManager(fs.Arg(0))
	if err != nil {
		fatalf("scan_hash: %v", err)
	}
	defer sm.Close()

	blockHash := hashdb.HexToBin(fs.Arg(1))
	raw, err := sm.FindExpandedHashJSON(blockHash)
	if err != nil {
		fatalf("scan_hash: %v", err)
	}
	if raw == "" {
		raw = fmt.Sprintf(`{"block_hash":%q}`, strings.ToLower(fs.Arg(1)))
	}
	fmt.Println(raw)
}

func cmdScanList(args []string) {
	fs := commandFlagSet("scan_list")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fatalf("usage: hashdb scan_list <db> <list-file>")
	}
	sm, err := hashdb.OpenScanManager(fs.Arg(0))
	if err != nil {
		fatalf("scan_list: %v", err)
	}
	defer sm.Close()

	f, err := os.Open(fs.Arg(1))
	if err != nil {
		fatalf("scan_list: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			fmt.Println(line)
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			fmt.Println(line)
			continue
		}
		prefix, hexHash := parts[0], parts[1]
		blockHash := hashdb.HexToBin(hexHash)
		raw, err := sm.FindExpandedHashJSON(blockHash)
		if err != nil {
			fatalf("scan_list: %v", err)
		}
		if raw == "" {
			raw = fmt.Sprintf(`{"block_hash":%q}`, strings.ToLower(hexHash))
		}
		fmt.Printf("%s\t%s\t%s\n", prefix, hexHash, raw)
	}
	if err := scanner.Err(); err != nil {
		fatalf("scan_list: reading %s: %v", fs.Arg(1), err)
	}
	fmt.Println("# scan_list completed.")
}

// openSetAlgebra opens outDB for write and every inDB for read,
// returning a driver and a cleanup func that closes everything in
// reverse order. Used by every set-algebra subcommand.
func openSetAlgebra(outDB string, inDBs []string) (*setalgebra.Driver, []*hashdb.ScanManager, func()) {
	im, err := hashdb.OpenImportManager(outDB)
	if err != nil {
		fatalf("%v", err)
	}
	closers := []func(){func() { im.Close() }}
	recordHistory(im)

	var ins []*hashdb.ScanManager
	for _, path := range inDBs {
		sm, err := hashdb.OpenScanManager(path)
		if err != nil {
			for _, c := range closers {
				c()
			}
			fatalf("%v", err)
		}
		smCloser := sm
		closers = append(closers, func() { smCloser.Close() })
		ins = append(ins, sm)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return setalgebra.New(im), ins, cleanup
}

func cmdAdd(args []string) {
	fs := commandFlagSet("add")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fatalf("usage: hashdb add <out-db> <in-db>")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:2])
	defer cleanup()
	if err := d.Add(ins[0]); err != nil {
		fatalf("add: %v", err)
	}
	fmt.Println("add complete")
}

func cmdAddMultiple(args []string) {
	fs := commandFlagSet("add_multiple")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fatalf("usage: hashdb add_multiple <out-db> <in-db>...")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:])
	defer cleanup()
	if err := d.AddMultiple(ins); err != nil {
		fatalf("add_multiple: %v", err)
	}
	fmt.Println("add_multiple complete")
}

func cmdAddRepository(args []string) {
	fs := commandFlagSet("add_repository")
	fs.Parse(args)
	if fs.NArg() < 3 {
		fatalf("usage: hashdb add_repository <out-db> <in-db> <repo>")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:2])
	defer cleanup()
	if err := d.AddRepository(ins[0], fs.Arg(2)); err != nil {
		fatalf("add_repository: %v", err)
	}
	fmt.Println("add_repository complete")
}

func cmdAddRange(args []string) {
	fs := commandFlagSet("add_range")
	fs.Parse(args)
	if fs.NArg() < 3 {
		fatalf("usage: hashdb add_range <out-db> <in-db> <lo:hi>")
	}
	lo, hi, err := setalgebra.ParseRange(fs.Arg(2))
	if err != nil {
		fatalf("add_range: %v", err)
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:2])
	defer cleanup()
	if err := d.AddRange(ins[0], lo, hi); err != nil {
		fatalf("add_range: %v", err)
	}
	fmt.Println("add_range complete")
}

func cmdIntersect(args []string) {
	fs := commandFlagSet("intersect")
	fs.Parse(args)
	if fs.NArg() < 3 {
		fatalf("usage: hashdb intersect <out-db> <in-db-a> <in-db-b>")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:3])
	defer cleanup()
	if err := d.Intersect(ins[0], ins[1]); err != nil {
		fatalf("intersect: %v", err)
	}
	fmt.Println("intersect complete")
}

func cmdIntersectHash(args []string) {
	fs := commandFlagSet("intersect_hash")
	fs.Parse(args)
	if fs.NArg() < 3 {
		fatalf("usage: hashdb intersect_hash <out-db> <in-db-a> <in-db-b>")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:3])
	defer cleanup()
	if err := d.IntersectHash(ins[0], ins[1]); err != nil {
		fatalf("intersect_hash: %v", err)
	}
	fmt.Println("intersect_hash complete")
}

func cmdSubtract(args []string) {
	fs := commandFlagSet("subtract")
	fs.Parse(args)
	if fs.NArg() < 3 {
		fatalf("usage: hashdb subtract <out-db> <in-db-a> <in-db-b>")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:3])
	defer cleanup()
	if err := d.Subtract(ins[0], ins[1]); err != nil {
		fatalf("subtract: %v", err)
	}
	fmt.Println("subtract complete")
}

func cmdSubtractHash(args []string) {
	fs := commandFlagSet("subtract_hash")
	fs.Parse(args)
	if fs.NArg() < 3 {
		fatalf("usage: hashdb subtract_hash <out-db> <in-db-a> <in-db-b>")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:3])
	defer cleanup()
	if err := d.SubtractHash(ins[0], ins[1]); err != nil {
		fatalf("subtract_hash: %v", err)
	}
	fmt.Println("subtract_hash complete")
}

func cmdSubtractRepository(args []string) {
	fs := commandFlagSet("subtract_repository")
	fs.Parse(args)
	if fs.NArg() < 3 {
		fatalf("usage: hashdb subtract_repository <out-db> <in-db> <repo>")
	}
	d, ins, cleanup := openSetAlgebra(fs.Arg(0), fs.Args()[1:2])
	defer cleanup()
	if err := d.SubtractRepository(ins[0], fs.Arg(2)); err != nil {
		fatalf("subtract_repository: %v", err)
	}
	fmt.Println("subtract_repository complete")
}

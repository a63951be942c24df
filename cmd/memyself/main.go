// cmd/memyself/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"memyself/internal/build"
	"memyself/internal/compiler"
	mmerrors "memyself/internal/errors"
	"memyself/internal/history"
	"memyself/internal/lexer"
	"memyself/internal/object"
	"memyself/internal/parser"
	"memyself/internal/turtle"
	"memyself/internal/vm"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"c": "compile",
	"r": "run",
	"k": "check",
	"h": "history",
}

// colorOutput governs whether printErr highlights diagnostics; set
// once in main from --no-color and terminal detection.
var colorOutput = true

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}
	colorOutput = !noColor(args)

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		showVersion()
	case "compile":
		cmdCompile(args[1:])
	case "run":
		cmdRun(args[1:])
	case "check":
		cmdCheck(args[1:])
	case "history":
		cmdHistory(args[1:])
	default:
		suggestCommand(cmd)
	}
}

func noColor(args []string) bool {
	for _, a := range args {
		if a == "--no-color" {
			return true
		}
	}
	return !isatty.IsTerminal(os.Stdout.Fd())
}

func stripFlags(args []string) (paths []string, flags map[string]bool) {
	flags = make(map[string]bool)
	for _, a := range args {
		if strings.HasPrefix(a, "--") {
			flags[a] = true
			continue
		}
		paths = append(paths, a)
	}
	return
}

func cmdCompile(args []string) {
	paths, _ := stripFlags(args)
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: memyself compile <in.mm> [<out.mmo>] | <a.mm> <b.mm> <c.mm> [more...]")
		os.Exit(1)
	}

	store := openHistory()
	defer closeHistory(store)

	ctx := context.Background()
	start := time.Now()

	// The legacy two-positional-arg form names an explicit output path
	// for a single source; anything else is independent files, each
	// compiled to its own default object path.
	var results []build.Result
	if len(paths) == 2 {
		objPath, err := build.CompileFile(paths[0], paths[1])
		results = []build.Result{{Source: paths[0], Object: objPath, Err: err}}
	} else {
		results = build.Batch(ctx, paths)
	}

	failures := 0
	for _, r := range results {
		entry := history.Entry{
			Verb:     history.VerbCompile,
			Source:   r.Source,
			Ok:       r.Err == nil,
			Duration: time.Since(start),
		}
		if r.Err != nil {
			failures++
			entry.Message = r.Err.Error()
			printErr(r.Source, r.Err)
		} else {
			entry.Message = "wrote " + r.Object
			fmt.Printf("%s -> %s\n", r.Source, r.Object)
		}
		recordHistory(store, entry)
	}

	fmt.Printf("compiled %d/%d in %s\n", len(results)-failures, len(results), humanize.RelTime(start, time.Now(), "", ""))
	if failures > 0 {
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	paths, _ := stripFlags(args)
	if len(paths) != 1 {
		fmt.Fprintln(os.Stderr, "usage: memyself check <in.mm>")
		os.Exit(1)
	}
	source := paths[0]

	store := openHistory()
	defer closeHistory(store)
	start := time.Now()

	src, err := os.ReadFile(source)
	if err != nil {
		printErr(source, err)
		recordHistory(store, history.Entry{Verb: history.VerbCheck, Source: source, Ok: false, Message: err.Error(), Duration: time.Since(start)})
		os.Exit(1)
	}
	tokens, err := lexer.NewScanner(source, string(src)).ScanTokens()
	var prog *parser.Program
	if err == nil {
		prog, err = parser.New(source, tokens).Parse()
	}
	if err == nil {
		_, err = compiler.New(source).Compile(prog)
	}
	ok := err == nil
	msg := "syntax and semantics OK"
	if err != nil {
		msg = err.Error()
		printErr(source, err)
	} else {
		fmt.Printf("%s: OK\n", source)
	}
	recordHistory(store, history.Entry{Verb: history.VerbCheck, Source: source, Ok: ok, Message: msg, Duration: time.Since(start)})
	if !ok {
		os.Exit(1)
	}
}

func cmdRun(args []string) {
	paths, flags := stripFlags(args)
	if len(paths) != 1 {
		fmt.Fprintln(os.Stderr, "usage: memyself run <in.mm|in.mmo> [--watch] [--watch-addr=:8765]")
		os.Exit(1)
	}
	source := paths[0]
	watch := flags["--watch"]

	store := openHistory()
	defer closeHistory(store)
	start := time.Now()

	var obj *object.Object
	var err error
	if strings.HasSuffix(source, ".mmo") {
		obj, err = loadObject(source)
	} else {
		objPath, cerr := build.CompileFile(source, "")
		if cerr != nil {
			err = cerr
		} else {
			obj, err = loadObject(objPath)
		}
	}
	if err != nil {
		printErr(source, err)
		recordHistory(store, history.Entry{Verb: history.VerbRun, Source: source, Ok: false, Message: err.Error(), Duration: time.Since(start)})
		os.Exit(1)
	}

	sinks := turtle.MultiSink{turtle.NewLogSink(log.Default())}
	var srv *http.Server
	if watch {
		ws := turtle.NewWebSocketSink()
		sinks = append(sinks, ws)
		mux := http.NewServeMux()
		mux.HandleFunc("/turtle", ws.Handler)
		addr := flagValue(args, "--watch-addr", ":8765")
		srv = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("watch server: %v", err)
			}
		}()
		fmt.Printf("watching on ws://%s/turtle\n", addr)
	}

	machine, err := vm.New(obj, sinks, os.Stdin, os.Stdout)
	if err == nil {
		err = machine.Run()
	}
	ok := err == nil
	msg := "ran to completion"
	if err != nil {
		msg = err.Error()
		printErr(source, err)
	}
	recordHistory(store, history.Entry{Verb: history.VerbRun, Source: source, Ok: ok, Message: msg, Duration: time.Since(start)})
	if !ok {
		os.Exit(1)
	}
}

func flagValue(args []string, name, fallback string) string {
	prefix := name + "="
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix)
		}
	}
	return fallback
}

func loadObject(path string) (*object.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mmerrors.Wrap(mmerrors.RuntimeIO, mmerrors.Location{File: path}, err, "opening object file")
	}
	defer f.Close()
	return object.Read(f)
}

func cmdHistory(args []string) {
	n := 20
	for i, a := range args {
		if a == "-n" && i+1 < len(args) {
			fmt.Sscanf(args[i+1], "%d", &n)
		}
	}
	store := openHistory()
	defer closeHistory(store)
	if store == nil {
		fmt.Println("no history store available")
		return
	}
	entries, err := store.Recent(context.Background(), n)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	for _, e := range entries {
		status := "ok"
		if !e.Ok {
			status = "FAIL"
		}
		fmt.Printf("%-8s %-5s %-30s %8s  %s\n", e.Verb, status, e.Source, humanize.RelTime(e.At, time.Now(), "ago", ""), e.Message)
	}
}

func openHistory() *history.Store {
	dsn := os.Getenv("MEMYSELF_HISTORY_DSN")
	store, err := history.Open(context.Background(), dsn)
	if err != nil {
		log.Printf("history store unavailable: %v", err)
		return nil
	}
	return store
}

func closeHistory(s *history.Store) {
	if s != nil {
		s.Close()
	}
}

func recordHistory(s *history.Store, e history.Entry) {
	if s == nil {
		return
	}
	if _, err := s.Record(context.Background(), e); err != nil {
		log.Printf("history: %v", err)
	}
}

func printErr(source string, err error) {
	msg := fmt.Sprintf("%s: %v", source, err)
	if colorOutput {
		fmt.Fprintf(os.Stderr, "\x1b[31m%s\x1b[0m\n", msg)
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}

func showUsage() {
	fmt.Println("memyself - a turtle-graphics language compiler and virtual machine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  memyself compile <in.mm> [<out.mmo>] Compile to a .mmo object file   (alias: c)")
	fmt.Println("  memyself compile <a.mm> <b.mm> <c.mm> [more...]")
	fmt.Println("                                       Compile three or more sources, each to its own .mmo")
	fmt.Println("  memyself run <in.mm|in.mmo>          Compile (if needed) and execute (alias: r)")
	fmt.Println("  memyself check <in.mm>               Parse and analyse only          (alias: k)")
	fmt.Println("  memyself history [-n N]              Show recent invocations         (alias: h)")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --watch             stream turtle events to a local websocket server (run only)")
	fmt.Println("  --watch-addr=:8765  address for the --watch server")
	fmt.Println("  --no-color          disable colored diagnostics")
	fmt.Println()
	fmt.Println("  memyself version")
	fmt.Println("  memyself help")
}

func showVersion() {
	fmt.Printf("memyself %s\n", version)
}

func suggestCommand(cmd string) {
	commands := []string{"compile", "run", "check", "history", "help", "version"}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
	for _, c := range commands {
		if levenshtein(cmd, c) <= 2 {
			fmt.Fprintf(os.Stderr, "  did you mean %q?\n", c)
		}
	}
	os.Exit(1)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}

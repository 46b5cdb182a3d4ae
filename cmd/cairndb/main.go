// Minimal REPL over the storage engine.
// Usage: go run ./cmd/cairndb <store.db>
//
// Commands:
//
//	insert <key> <value>
//	get <key>
//	del <key>
//	list
//	range <start> <end>
//	commit
//	exit
//
// Keys and values are stored as strings; numeric-looking inputs are stored
// as numbers so ordering behaves the way you would expect.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"CairnDB/bplustree"
	"CairnDB/engine"
	"CairnDB/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <store.db>\n", os.Args[0])
		os.Exit(1)
	}

	db, err := engine.Open(os.Args[1], engine.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("cairn> ")
		if !scanner.Scan() { // Ctrl+D pressed
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		if cmd == "exit" {
			break
		}
		if err := run(db, cmd, fields[1:]); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func run(db *engine.Engine, cmd string, args []string) error {
	switch cmd {
	case "insert":
		if len(args) < 2 {
			return fmt.Errorf("usage: insert <key> <value>")
		}
		return db.Insert(parseValue(args[0]), parseValue(strings.Join(args[1:], " ")))
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		val, found, err := db.Search(parseValue(args[0]))
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(val)
		return nil
	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <key>")
		}
		return db.Delete(parseValue(args[0]))
	case "list":
		it := db.Entries()
		for it.Next() {
			fmt.Printf("%s -> %s\n", it.Key(), it.Value())
		}
		return it.Err()
	case "range":
		if len(args) != 2 {
			return fmt.Errorf("usage: range <start> <end>")
		}
		it := db.Range(parseValue(args[0]), parseValue(args[1]),
			bplustree.RangeOptions{InclusiveStart: true, InclusiveEnd: true})
		for it.Next() {
			fmt.Printf("%s -> %s\n", it.Key(), it.Value())
		}
		return it.Err()
	case "commit":
		if err := db.Commit(); err != nil {
			return err
		}
		fmt.Println("committed")
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func parseValue(s string) types.Value {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return types.Number(f)
	}
	return types.String(s)
}

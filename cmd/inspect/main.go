// Command inspect dumps keys of a stopped relay's store.
//
//	inspect --db ./.database                  list every key
//	inspect --db ./.database --prefix chatcfg: list chat settings keys
//	inspect --db ./.database --key chatcfg:-100123
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"transrelay/pkg/logger"
	"transrelay/pkg/state"
	"transrelay/pkg/store"
)

func main() {
	db := flag.String("db", "./.database", "relay data directory")
	prefix := flag.String("prefix", "", "only list keys with this prefix (record:, chatcfg:)")
	key := flag.String("key", "", "print the value stored under this key")
	flag.Parse()

	logger.InitWithLevel("warn", "text")
	if err := store.Open(state.LayoutFor(*db).Store); err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *key != "" {
		v, err := store.GetKey(*key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get %s: %v\n", *key, err)
			os.Exit(1)
		}
		var out bytes.Buffer
		if json.Indent(&out, []byte(v), "", "  ") != nil {
			fmt.Println(v)
			return
		}
		fmt.Println(out.String())
		return
	}

	keys, err := store.ListKeys(*prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}

// Package main реализует консольную утилиту обслуживания таблицы заметок.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(connectBackend).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

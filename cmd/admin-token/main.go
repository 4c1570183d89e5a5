package main

import (
	"flag"
	"fmt"
	"os"

	"rollcall/internal/platform/config"
	"rollcall/internal/tools/admintoken"
)

func main() {
	cfg, err := admintoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		exitf("parse flags: %v", err)
	}
	admin, err := config.AdminFromEnv()
	if err != nil {
		exitf("load config: %v", err)
	}
	if err := admintoken.Run(cfg, admin, os.Stdout); err != nil {
		exitf("issue token: %v", err)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

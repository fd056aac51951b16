// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jarvis-mode/jarvisd/internal/app"
)

var version = "0.1.0"

func main() {
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect jarvisd.hjson)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP/WebSocket listen host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP/WebSocket listen port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("jarvisd %s\n", version)
		os.Exit(0)
	}

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("failed to create jarvisd: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("jarvisd error: %v", err)
	}
}

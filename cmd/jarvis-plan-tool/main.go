// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// jarvis-plan-tool is the External Tool Invoker (spec.md §4.9): a small
// binary the AI CLI spawns as a tool call to transition the active session
// from planning into execution. It has no daemon-internal access; it talks
// to jarvisd's HTTP API over pkg/client and prints the Controller's
// resulting confirmation or error text back to the calling tool.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jarvis-mode/jarvisd/internal/toolinvoker"
	"github.com/jarvis-mode/jarvisd/pkg/client"
)

var apiURL = "http://localhost:8710"

func main() {
	if env := os.Getenv("JARVISD_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	c := client.New(apiURL, client.WithTimeout(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println(toolinvoker.Invoke(ctx, c.ExecutePlan))
}

// Command airouter runs the distributed AI request router: an HTTP
// serving surface for dashboard callers, an MCP tool surface for chat
// hosts, and config inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configPath string
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(ctx, configPath)
	case "mcp":
		err = runMCP(ctx, configPath)
	case "config":
		err = runConfig(configPath)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "airouter: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: airouter [-config path] <command>

Commands:
  serve    run the HTTP routing service
  mcp      serve the route_query tool over MCP stdio
  config   print the effective configuration as YAML
  version  print the version
`)
}

// Command faqsync exports Gladly answers and publishes them as questions of a
// Shopify theme FAQ template.
//
// Exit codes: 0 = success, 1 = error, 2 = usage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, err := lookup(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := initializeApp()
	if err != nil {
		log.Fatalf("failed to wire application: %v", err)
	}

	err = cmd(ctx, app, os.Args[2:], os.Stdout)
	cleanup()
	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, errUsage):
		usage()
		os.Exit(2)
	case err != nil:
		app.Logger.Error("command failed", "command", os.Args[1], "error", err)
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: faqsync <command> [flags]

commands:
  export    fetch answers and write the tabular files
  archive   list records mirrored by earlier exports
  sections  list the sections of the FAQ template
  list      list the questions of a section
  add       add a question
  update    update a question
  remove    remove a question
  map       publish rows of an export file
  sync      publish answers straight from the knowledge base
  match     pair answers with existing questions by similarity
  rehandle  rename linked questions to their source ids
  token     issue an admin API token
  serve     start the admin HTTP server`)
}

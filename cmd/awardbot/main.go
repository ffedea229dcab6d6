package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"awardbot/internal/app"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: awardbot [-config path] <command>

commands:
  run                one scan and publish cycle
  start [minutes]    continuous monitoring (default: config interval)
  test-scan          scan and print findings, publish nothing
  test-enrich        enrich a built-in sample and print the result
`)
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	switch args[0] {
	case "run":
		err = a.RunOnce(ctx)

	case "start":
		var interval time.Duration
		if len(args) > 1 {
			minutes, perr := strconv.Atoi(args[1])
			if perr != nil || minutes <= 0 {
				fmt.Fprintln(os.Stderr, "fatal: start interval must be a positive number of minutes")
				os.Exit(2)
			}
			interval = time.Duration(minutes) * time.Minute
		}
		err = a.RunContinuous(ctx, interval)

	case "test-scan":
		found := a.TestScan(ctx)
		fmt.Printf("found %d new announcement(s)\n", len(found))
		for _, ann := range found {
			fmt.Printf("  %s  %s\n    %s\n", ann.ID, ann.Title, ann.URL)
		}

	case "test-enrich":
		content, fallback := a.TestEnrich(ctx)
		if fallback {
			fmt.Println("(model unavailable, template fallback used)")
		}
		fmt.Println("TITLE ZH:", content.TitleZH)
		fmt.Println("TITLE EN:", content.TitleEN)
		fmt.Println()
		fmt.Println(content.BodyZH)
		fmt.Println()
		fmt.Println(content.BodyEN)
		fmt.Println()
		fmt.Println("HASHTAGS:", strings.Join(content.Hashtags(), " "))
		if tweet := content.Platform["twitter"]; tweet != "" {
			fmt.Println()
			fmt.Println("TWEET:", tweet)
		}

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

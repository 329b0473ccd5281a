package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raniellyferreira/lrukv"
)

func main() {
	var port = flag.Int("port", 8080, "TCP port to listen on")
	var host = flag.String("host", "0.0.0.0", "Interface to bind")
	var maxConns = flag.Int("max-connections", 10, "Maximum concurrently served connections")
	var capacity = flag.Int64("capacity", 1<<20, "Cache capacity in bytes (key + value lengths)")
	var maxEntry = flag.Int64("max-entry-size", 0, "Largest single entry in bytes (0 = capacity)")
	var readTimeout = flag.Duration("read-timeout", 0, "Close connections idle this long (0 = never)")
	var writeTimeout = flag.Duration("write-timeout", 10*time.Second, "Deadline for writing one response")
	var drainTimeout = flag.Duration("drain-timeout", 5*time.Second, "Time a partly received request may take to arrive at shutdown")
	var reusePort = flag.Bool("reuse-port", false, "Set SO_REUSEPORT on the listener")
	var scripting = flag.Bool("scripting", true, "Enable eval, evalsha and script commands")
	var versionFlag = flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *versionFlag {
		fmt.Println("lrukv", lrukv.VersionString())
		if lrukv.BuildTime != "" {
			fmt.Println("built", lrukv.BuildTime)
		}
		os.Exit(0)
	}

	node, err := lrukv.New(
		lrukv.WithHost(*host),
		lrukv.WithPort(*port),
		lrukv.WithMaxConnections(*maxConns),
		lrukv.WithCapacity(*capacity),
		lrukv.WithMaxEntrySize(*maxEntry),
		lrukv.WithReadTimeout(*readTimeout),
		lrukv.WithWriteTimeout(*writeTimeout),
		lrukv.WithDrainTimeout(*drainTimeout),
		lrukv.WithReusePort(*reusePort),
		lrukv.WithScripting(*scripting),
	)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	<-ctx.Done()
	log.Println("Shutting down, waiting for connections to drain")

	node.Stop()
	node.Join()

	stats := node.Stats()
	log.Printf("Served %d connections, %d commands, %d evictions",
		stats.TotalConnections, stats.Commands, stats.Cache.Evictions)
}

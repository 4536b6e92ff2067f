// Command raftd runs a single Raft replica process. Usage:
//
//	raftd <port> <id> <peer_id>...
//
// per spec.md §6's launcher contract. Two ambient flags are accepted before
// the positional arguments: -logdir (where <id>.log is written) and
// -config (an optional YAML cluster manifest, see replica.LoadClusterConfig).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sebytremblay/raft-protocol/replica"
	"github.com/sebytremblay/raft-protocol/transport"
)

func main() {
	logDir := flag.String("logdir", ".", "directory for the per-replica diagnostic log")
	configPath := flag.String("config", "", "optional YAML cluster manifest")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		log.Fatal("usage: raftd [-logdir dir] [-config path] <port> <id> <peer_id>...")
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("invalid port %q: %v", args[0], err)
	}
	id := args[1]
	peers := args[2:]

	if *configPath != "" {
		cfg, err := replica.LoadClusterConfig(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		peers = cfg.PeerIDs()
	}

	diag, err := replica.NewFileDiagnostics(*logDir, id)
	if err != nil {
		log.Fatalf("opening diagnostics: %v", err)
	}

	tr, err := transport.New(port)
	if err != nil {
		log.Fatalf("opening transport: %v", err)
	}

	r := replica.New(id, peers, tr, diag)
	r.Announce()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runErr := r.Run(ctx, tr.Receive)
	if closeErr := r.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", closeErr)
	}
	if runErr != nil && runErr != context.Canceled {
		log.Fatalf("replica %s stopped: %v", id, runErr)
	}
}

// Command raftclient sends a single get/put datagram to a replica and
// prints the response. It exists to manually exercise the end-to-end
// scenarios in spec.md §8 without standing up the full test harness;
// grounded in the teacher's testRaftNode.sendCommand helper, generalized
// into a standalone binary and retargeted at the UDP wire format.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sebytremblay/raft-protocol/transport"
)

func main() {
	port := flag.Int("port", 0, "hub UDP port shared with the replicas")
	clientID := flag.String("id", "client", "this client's identifier")
	dst := flag.String("dst", transport.Broadcast, "destination replica id (or FFFF to broadcast)")
	op := flag.String("op", "get", "get or put")
	key := flag.String("key", "", "key to get or put")
	value := flag.String("value", "", "value to put")
	timeout := flag.Duration("timeout", 2*time.Second, "how long to wait for a response")
	flag.Parse()

	if *port == 0 {
		log.Fatal("usage: raftclient -port <hub_port> -op get|put -key <key> [-value <value>] [-dst <replica_id>]")
	}

	tr, err := transport.New(*port)
	if err != nil {
		log.Fatalf("opening transport: %v", err)
	}
	defer tr.Close()

	mid := uuid.NewString()
	msg := transport.Message{Src: *clientID, Dst: *dst, Leader: transport.Broadcast, MID: mid, Key: *key}
	switch *op {
	case "get":
		msg.Type = transport.TypeGet
	case "put":
		msg.Type = transport.TypePut
		msg.Value = *value
	default:
		log.Fatalf("unknown op %q, want get or put", *op)
	}

	deadline := time.Now().Add(*timeout)
	target := *dst
	for {
		msg.Dst = target
		if err := tr.Send(msg); err != nil {
			log.Fatalf("send: %v", err)
		}

		resp, ok, err := tr.Receive(time.Until(deadline))
		if err != nil {
			log.Fatalf("receive: %v", err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "timed out waiting for a response")
			os.Exit(1)
		}
		if resp.MID != mid {
			continue
		}

		switch resp.Type {
		case transport.TypeRedirect:
			target = resp.Leader
			continue
		case transport.TypeOK:
			out, _ := json.Marshal(resp)
			fmt.Println(string(out))
			return
		case transport.TypeFail:
			fmt.Fprintln(os.Stderr, "request failed")
			os.Exit(1)
		}
	}
}

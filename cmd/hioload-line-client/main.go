// File: cmd/hioload-line-client/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sends each stdin line to a line-protocol server and prints the reply.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/client"
	"github.com/momentics/hioload-nio/protocol/line"
)

func main() {
	host := flag.String("host", "127.0.0.1", "server host")
	port := flag.Int("port", 8888, "server port")
	network := flag.String("network", api.NetworkTCP, "tcp, tcp4, tcp6 or vsock")
	timeout := flag.Duration("timeout", client.DefaultResponseTimeout, "reply timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	proc := client.NewSyncProcessor[string](*timeout, func(_ *client.SyncSession[string], msg string) error {
		fmt.Printf("<< %s\n", msg)
		return nil
	})
	c := client.NewClient[string](nil,
		api.WithNetwork[string](*network),
		api.WithHost[string](*host),
		api.WithPort[string](*port),
		api.WithThreadNum[string](1),
		api.WithConnectTimeout[string](5*time.Second),
		api.WithProtocolFactory(line.Factory(0)),
		api.WithProcessor[string](proc),
		api.WithLogger[string](logger),
	)
	if err := c.Start(); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer c.Shutdown()

	ms := c.Session()
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		reply, err := ms.SendWithResponse(in.Text())
		if err != nil {
			log.Printf("request failed: %v", err)
			continue
		}
		fmt.Println(reply)
	}
}

// File: cmd/hioload-http/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal HTTP/1.1 responder on the reactor engine. Form bodies arrive
// buffered; other POST bodies are drained from their stream on a separate
// goroutine before the response is written.

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/protocol/http1"
	"github.com/momentics/hioload-nio/server"
)

func respond(s api.Session, status string, body string) error {
	resp := fmt.Sprintf("HTTP/1.1 %s\r\nContent-Type: text/plain\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
	return s.WriteBytes([]byte(resp))
}

func handle(s api.TransportSession[*http1.Entity], e *http1.Entity) error {
	switch e.Strategy() {
	case http1.BodyStream:
		st := e.Stream()
		go func() {
			n, err := io.Copy(io.Discard, st)
			if err != nil {
				return
			}
			_ = respond(s, "200 OK", fmt.Sprintf("streamed %d bytes\n", n))
		}()
		return nil
	case http1.BodyBlock:
		return respond(s, "200 OK", fmt.Sprintf("form %d bytes\n", len(e.Body())))
	default:
		return respond(s, "200 OK", fmt.Sprintf("%s %s\n", e.Method, e.URI))
	}
}

func main() {
	host := flag.String("host", "", "bind host")
	port := flag.Int("port", 8888, "bind port")
	threads := flag.Int("threads", 0, "read and write workers each (0 = NumCPU)")
	pin := flag.Bool("pin", false, "pin worker threads to CPUs")
	debug := flag.Bool("debug", false, "debug logging")
	stats := flag.Duration("stats", 0, "print metrics every interval (0 = off)")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []api.Option[*http1.Entity]{
		server.WithAddr[*http1.Entity](*host, *port),
		api.WithProtocolFactory(http1.Factory(http1.WithLogger(logger))),
		api.WithProcessor[*http1.Entity](api.ProcessorFunc[*http1.Entity](handle)),
		api.WithCPUAffinity[*http1.Entity](*pin),
		api.WithLogger[*http1.Entity](logger),
	}
	if *threads > 0 {
		opts = append(opts, api.WithThreadNum[*http1.Entity](*threads))
	}
	srv := server.NewServer[*http1.Entity](nil, opts...)
	if err := srv.Start(); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	stop := make(chan struct{})
	if *stats > 0 {
		go func() {
			ticker := time.NewTicker(*stats)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					st := srv.Stats()
					fmt.Printf("sessions=%d metrics=%v\n", st.Sessions, st.Metrics)
				}
			}
		}()
	}

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh
	log.Println("Shutdown signal received")
	close(stop)
	if err := srv.Shutdown(); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

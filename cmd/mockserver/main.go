// Command mockserver runs the fake university backend on its own, for pointing a
// client build at something that behaves like production.
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/campusapp/schedule-cache/internal/mockupstream"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	tokens := flag.String("tokens", "", "comma separated bearer tokens to accept; empty accepts any")
	latency := flag.Duration("register-latency", 0, "artificial delay of device registration")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	upstream := mockupstream.New(logger)
	if *tokens != "" {
		upstream.AcceptTokens(strings.Split(*tokens, ",")...)
	}
	upstream.SetLatency(*latency)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           upstream.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("mock upstream listening", "addr", *addr)
	log.Fatal(srv.ListenAndServe())
}

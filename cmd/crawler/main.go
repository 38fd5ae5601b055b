package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/navid-fn/coinwatch/internal/crawler"
	"github.com/navid-fn/coinwatch/internal/drivers/bitfinex"
)

func main() {
	var exchange string
	var useWebSocket bool

	flag.StringVar(&exchange, "exchange", "bitfinex", "Exchange to crawl")
	flag.BoolVar(&useWebSocket, "ws", false, "Stream tickers over WebSocket instead of REST polling")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var c crawler.Crawler

	switch exchange {
	case "bitfinex":
		c = bitfinex.NewBitfinexCrawler(useWebSocket)
	default:
		fmt.Fprintf(os.Stderr, "Unknown exchange: %s\n", exchange)
		fmt.Fprintf(os.Stderr, "Usage: %s -exchange bitfinex [-ws]\n", os.Args[0])
		os.Exit(1)
	}

	logger.Info("Starting crawler", "exchange", c.GetName(), "websocket", useWebSocket)

	ctx := context.Background()
	if err := c.Run(ctx); err != nil {
		logger.Error("Crawler failed", "error", err)
		os.Exit(1)
	}
}

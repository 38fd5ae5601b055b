// Package bitfinex crawls ticker snapshots from Bitfinex and publishes them
// as feed quotes. It supports two modes: REST polling of v1 pubticker and a
// v2 WebSocket ticker subscription.
package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/navid-fn/coinwatch/internal/crawler"
)

const (
	// pubticker is rate limited to roughly 30 requests per minute
	pollRequestsPerSecond = 0.5
	pollDelay             = 30 * time.Second
)

type BitfinexCrawler struct {
	*crawler.BaseCrawler
	api          *API
	tracker      *crawler.QuoteTracker
	httpWorker   *crawler.BaseHTTPWorker
	useWebSocket bool
}

// NewBitfinexCrawler creates a Bitfinex ticker crawler. With useWebSocket
// it streams ticker frames over the v2 WebSocket, otherwise it polls the
// v1 pubticker endpoint.
func NewBitfinexCrawler(useWebSocket bool) *BitfinexCrawler {
	config := crawler.NewConfig("bitfinex", crawler.MaxSubsPerConn)

	bfc := &BitfinexCrawler{
		BaseCrawler:  crawler.NewBaseCrawler(config),
		api:          NewAPI(),
		tracker:      crawler.NewQuoteTracker(),
		useWebSocket: useWebSocket,
	}

	httpConfig := crawler.DefaultHTTPConfig(BitfinexAPIURL, pollRequestsPerSecond)
	httpConfig.PollingDelay = pollDelay
	bfc.httpWorker = crawler.NewBaseHTTPWorker(httpConfig, bfc.Logger, bfc.publish)

	return bfc
}

func (bfc *BitfinexCrawler) GetName() string {
	return "bitfinex"
}

// FetchPairs returns all tradable pairs from the REST API.
func (bfc *BitfinexCrawler) FetchPairs() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pairs, err := bfc.api.FetchSymbols(ctx)
	if err != nil {
		return nil, err
	}
	bfc.Logger.Info("Fetched pairs from Bitfinex API", "count", len(pairs))
	return pairs, nil
}

func (bfc *BitfinexCrawler) publish(message []byte) error {
	return bfc.Publish(context.Background(), message)
}

// Run starts the crawler and blocks until shutdown.
func (bfc *BitfinexCrawler) Run(ctx context.Context) error {
	bfc.Logger.Info("Starting Bitfinex Crawler", "websocket", bfc.useWebSocket)

	bfc.InitKafkaWriter()
	defer bfc.CloseKafkaWriter()

	pairs, err := bfc.FetchPairs()
	if err != nil {
		return fmt.Errorf("could not fetch pairs: %w", err)
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no pairs found to subscribe to")
	}

	if bfc.useWebSocket {
		chunks := crawler.ChunkPairs(pairs, bfc.Config.MaxSubsPerConn)
		bfc.Logger.Info("Divided pairs into chunks", "pairs", len(pairs), "chunks", len(chunks))

		return crawler.RunWithGracefulShutdown(bfc.Logger, func(ctx context.Context, wg *sync.WaitGroup) {
			for _, chunk := range chunks {
				wg.Add(1)
				worker := bfc.newTickerWSWorker()
				go worker.RunWorker(ctx, chunk, wg, "BitfinexWorker")
			}
		})
	}

	return crawler.RunWithGracefulShutdown(bfc.Logger, func(ctx context.Context, wg *sync.WaitGroup) {
		for _, pair := range pairs {
			wg.Add(1)
			go bfc.httpWorker.RunWorker(ctx, pair, wg, bfc.FetchQuote)
		}
	})
}

// FetchQuote polls the ticker for one pair and publishes it unless the
// snapshot is unchanged since the last poll.
func (bfc *BitfinexCrawler) FetchQuote(ctx context.Context, pair string) error {
	ticker, err := bfc.api.FetchTicker(ctx, pair)
	if err != nil {
		return err
	}

	hash := crawler.CreateQuoteHash(ticker.Timestamp, ticker.LastPrice, ticker.Volume)
	if bfc.tracker.IsQuoteSeen(pair, hash) {
		return nil
	}

	feed := crawler.FeedQuote{
		Exchange:  bfc.GetName(),
		Pair:      pair,
		Mid:       ticker.Mid,
		Bid:       ticker.Bid,
		Ask:       ticker.Ask,
		LastPrice: ticker.LastPrice,
		Low:       ticker.Low,
		High:      ticker.High,
		Volume:    ticker.Volume,
		Timestamp: ticker.Timestamp,
	}

	message, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("marshal feed quote: %w", err)
	}
	if err := bfc.publish(message); err != nil {
		return fmt.Errorf("publish quote for %s: %w", pair, err)
	}

	bfc.tracker.MarkQuoteSeen(pair, hash)
	return nil
}

// newTickerWSWorker builds a WebSocket worker with its own channel-id map.
// Bitfinex assigns channel ids per connection, so the map cannot be shared
// between workers.
func (bfc *BitfinexCrawler) newTickerWSWorker() *crawler.BaseWebSocketWorker {
	var mu sync.Mutex
	channels := make(map[int64]string)

	wsConfig := crawler.DefaultWebSocketConfig(BitfinexWSURL)
	worker := crawler.NewBaseWebSocketWorker(wsConfig, crawler.NewWSLogger(), bfc.publish)

	worker.OnSubscribe = func(conn *websocket.Conn, pairs []string) error {
		mu.Lock()
		channels = make(map[int64]string)
		mu.Unlock()

		for _, pair := range pairs {
			conn.SetWriteDeadline(time.Now().Add(wsConfig.WriteTimeout))
			sub := map[string]string{
				"event":   "subscribe",
				"channel": "ticker",
				"symbol":  "t" + strings.ToUpper(pair),
			}
			if err := conn.WriteJSON(sub); err != nil {
				return fmt.Errorf("failed to send subscription message: %w", err)
			}
		}
		return nil
	}

	worker.OnMessage = func(message []byte) ([]byte, error) {
		return bfc.translateFrame(message, &mu, channels)
	}

	return worker
}

// subscribedEvent is the v2 acknowledgement carrying the channel id.
type subscribedEvent struct {
	Event  string `json:"event"`
	ChanID int64  `json:"chanId"`
	Pair   string `json:"pair"`
}

// translateFrame converts a v2 ticker frame into a feed quote message.
// Returns nil for event and heartbeat frames, which means skip.
func (bfc *BitfinexCrawler) translateFrame(message []byte, mu *sync.Mutex, channels map[int64]string) ([]byte, error) {
	if len(message) == 0 {
		return nil, nil
	}

	if message[0] == '{' {
		var event subscribedEvent
		if err := json.Unmarshal(message, &event); err != nil {
			return nil, fmt.Errorf("decode event frame: %w", err)
		}
		if event.Event == "subscribed" && event.Pair != "" {
			mu.Lock()
			channels[event.ChanID] = event.Pair
			mu.Unlock()
		}
		return nil, nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil, fmt.Errorf("decode ticker frame: %w", err)
	}
	if len(frame) != 2 {
		return nil, nil
	}

	var chanID int64
	if err := json.Unmarshal(frame[0], &chanID); err != nil {
		return nil, fmt.Errorf("decode channel id: %w", err)
	}

	// Heartbeats arrive as [chanId, "hb"]
	var fields []float64
	if err := json.Unmarshal(frame[1], &fields); err != nil {
		return nil, nil
	}
	if len(fields) < 10 {
		return nil, nil
	}

	mu.Lock()
	pair, ok := channels[chanID]
	mu.Unlock()
	if !ok {
		return nil, nil
	}

	// [BID, BID_SIZE, ASK, ASK_SIZE, CHANGE, CHANGE_REL, LAST, VOLUME, HIGH, LOW]
	bid, ask := fields[0], fields[2]
	feed := crawler.FeedQuote{
		Exchange:  bfc.GetName(),
		Pair:      strings.ToLower(pair),
		Mid:       formatPrice((bid + ask) / 2),
		Bid:       formatPrice(bid),
		Ask:       formatPrice(ask),
		LastPrice: formatPrice(fields[6]),
		Volume:    formatPrice(fields[7]),
		High:      formatPrice(fields[8]),
		Low:       formatPrice(fields[9]),
		Timestamp: strconv.FormatFloat(float64(time.Now().UnixMicro())/1e6, 'f', 6, 64),
	}

	return json.Marshal(feed)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

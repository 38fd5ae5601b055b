package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketConfig holds WebSocket-specific configuration
type WebSocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
}

// DefaultWebSocketConfig returns a default WebSocket configuration
func DefaultWebSocketConfig(wsURL string) *WebSocketConfig {
	return &WebSocketConfig{
		URL:              wsURL,
		HandshakeTimeout: HandshakeTimeout,
		ReadTimeout:      ReadTimeout,
		WriteTimeout:     WriteTimeout,
		PingInterval:     PingInterval,
		PongTimeout:      PongTimeout,
	}
}

// BaseWebSocketWorker provides common WebSocket functionality for ticker
// feeds: connection lifecycle, ping/pong health, reconnect backoff.
type BaseWebSocketWorker struct {
	Config      *WebSocketConfig
	Logger      *logrus.Logger
	Publish     func([]byte) error
	OnMessage   func([]byte) ([]byte, error) // Optional message transformation
	OnConnect   func(*websocket.Conn) error  // Optional connection setup
	OnSubscribe func(*websocket.Conn, []string) error
}

// NewBaseWebSocketWorker creates a new BaseWebSocketWorker
func NewBaseWebSocketWorker(config *WebSocketConfig, logger *logrus.Logger, publish func([]byte) error) *BaseWebSocketWorker {
	return &BaseWebSocketWorker{
		Config:  config,
		Logger:  logger,
		Publish: publish,
	}
}

// RunWorker starts a WebSocket worker for a chunk of pairs
func (bw *BaseWebSocketWorker) RunWorker(
	ctx context.Context,
	pairsChunk []string,
	wg *sync.WaitGroup,
	workerPrefix string,
) {
	defer wg.Done()

	workerID := fmt.Sprintf("%s-%s", workerPrefix, pairsChunk[0])
	bw.Logger.Infof("[%s] Starting for %d pairs", workerID, len(pairsChunk))

	reconnectDelay := InitialReconnectDelay
	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			bw.Logger.Infof("[%s] Shutting down due to context cancellation", workerID)
			return
		default:
			if err := bw.HandleConnection(ctx, workerID, pairsChunk); err != nil {
				consecutiveErrors++
				bw.Logger.Errorf("[%s] WebSocket error (%d/%d): %v. Reconnecting in %v...",
					workerID, consecutiveErrors, MaxConsecutiveErrors, err, reconnectDelay)

				// Exponential backoff with max limit
				if reconnectDelay < MaxReconnectDelay {
					reconnectDelay *= 2
					if reconnectDelay > MaxReconnectDelay {
						reconnectDelay = MaxReconnectDelay
					}
				}

				if consecutiveErrors >= MaxConsecutiveErrors {
					bw.Logger.Warnf("[%s] Too many consecutive errors, extending delay", workerID)
					reconnectDelay = MaxReconnectDelay
				}

				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectDelay):
					continue
				}
			} else {
				// Reset on successful connection
				consecutiveErrors = 0
				reconnectDelay = InitialReconnectDelay
			}
		}
	}
}

// HandleConnection manages a single WebSocket connection lifecycle
func (bw *BaseWebSocketWorker) HandleConnection(ctx context.Context, workerID string, pairsChunk []string) error {
	u, err := url.Parse(bw.Config.URL)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: bw.Config.HandshakeTimeout,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	defer conn.Close()

	bw.Logger.Infof("[%s] Connected to WebSocket", workerID)

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	if bw.OnConnect != nil {
		if err := bw.OnConnect(conn); err != nil {
			return fmt.Errorf("failed to execute OnConnect: %w", err)
		}
	}

	lastPong := time.Now()
	var pongMu sync.Mutex

	conn.SetPongHandler(func(string) error {
		pongMu.Lock()
		lastPong = time.Now()
		pongMu.Unlock()
		return nil
	})

	conn.SetPingHandler(func(message string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(bw.Config.WriteTimeout))
		if err != nil {
			bw.Logger.Errorf("[%s] Failed to send pong: %v", workerID, err)
		}
		return err
	})

	if bw.OnSubscribe != nil {
		if err := bw.OnSubscribe(conn, pairsChunk); err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
	}

	pingTicker := time.NewTicker(bw.Config.PingInterval)
	defer pingTicker.Stop()

	healthTicker := time.NewTicker(HealthCheckInterval)
	defer healthTicker.Stop()

	readErrors := make(chan error, 1)
	messages := make(chan []byte, 100)

	// Message reader
	go func() {
		defer close(messages)

		for {
			select {
			case <-connCtx.Done():
				return
			default:
				conn.SetReadDeadline(time.Now().Add(bw.Config.ReadTimeout))
				_, message, err := conn.ReadMessage()
				if err != nil {
					select {
					case readErrors <- err:
					case <-connCtx.Done():
					}
					return
				}

				select {
				case messages <- message:
				case <-connCtx.Done():
					return
				}
			}
		}
	}()

	// Main event loop
	for {
		select {
		case <-ctx.Done():
			bw.Logger.Infof("[%s] Context cancelled, closing connection", workerID)
			return nil

		case err := <-readErrors:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				return fmt.Errorf("WebSocket read error: %w", err)
			}
			if err != nil {
				return fmt.Errorf("connection error: %w", err)
			}

		case message := <-messages:
			finalMessage := message
			if bw.OnMessage != nil {
				transformed, err := bw.OnMessage(message)
				if err != nil {
					bw.Logger.Errorf("[%s] Failed to transform message: %v", workerID, err)
					continue
				}
				if transformed == nil {
					// nil means skip this message
					continue
				}
				finalMessage = transformed
			}

			if err := bw.Publish(finalMessage); err != nil {
				bw.Logger.Errorf("[%s] Failed to publish message: %v", workerID, err)
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(bw.Config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return fmt.Errorf("failed to send ping: %w", err)
			}

		case <-healthTicker.C:
			pongMu.Lock()
			sinceLastPong := time.Since(lastPong)
			pongMu.Unlock()
			if sinceLastPong > (bw.Config.PingInterval + bw.Config.PongTimeout) {
				return fmt.Errorf("connection appears unhealthy, last pong was %v ago", sinceLastPong)
			}
		}
	}
}

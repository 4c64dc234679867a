// Call Viewer - live view of orchestrator turns and call summaries.
// Consumes the turn and summary topics from Kafka and relays them to the
// browser over WebSocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

//go:embed static/*
var staticFiles embed.FS

// Envelope is what the browser receives: the raw event plus where it came from.
type Envelope struct {
	Topic     string          `json:"topic"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Event     json.RawMessage `json:"event"`
}

// Hub fans events out to connected browsers.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]struct{}
	broadcast chan Envelope
}

func newHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Envelope, 100),
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Int("clients", n).Msg("Client connected")
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Int("clients", n).Msg("Client disconnected")
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(env); err != nil {
					log.Warn().Err(err).Msg("WebSocket write failed, dropping client")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev tool
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		hub.add(conn)

		// Drain reads so close frames are noticed.
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func consume(ctx context.Context, hub *Hub, brokers []string, topic string, lookback time.Duration) {
	// Partition reader without a consumer group so several viewers can tail the same topic.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-lookback)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Could not seek, reading from current offset")
	}
	log.Info().Str("topic", topic).Dur("lookback", lookback).Msg("Consuming from Kafka")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var head struct {
			EventType string `json:"eventType"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg.Value, &head); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping malformed event")
			continue
		}

		log.Debug().
			Str("eventType", head.EventType).
			Str("sessionId", head.SessionID).
			Str("key", string(msg.Key)).
			Msg("Received event")

		select {
		case hub.broadcast <- Envelope{Topic: topic, EventType: head.EventType, SessionID: head.SessionID, Event: msg.Value}:
		case <-ctx.Done():
			return
		}
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicTurns := flag.String("topic-turns", "conversation.turn.completed", "Turn event topic")
	topicSummaries := flag.String("topic-summaries", "conversation.call.summarized", "Call summary topic")
	lookback := flag.Duration("lookback", time.Hour, "How far back to replay events on start")
	debug := flag.Bool("debug", false, "Log every received event")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	go hub.run(ctx)

	brokerList := strings.Split(*brokers, ",")
	go consume(ctx, hub, brokerList, *topicTurns, *lookback)
	go consume(ctx, hub, brokerList, *topicSummaries, *lookback)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("Static assets missing")
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(hub))

	srv := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("url", "http://localhost:"+*port).
		Strs("brokers", brokerList).
		Str("topicTurns", *topicTurns).
		Str("topicSummaries", *topicSummaries).
		Msg("Call viewer starting")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}
}

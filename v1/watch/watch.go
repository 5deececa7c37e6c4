// Package watch exposes evaluation domain events over HTTP so operators
// can observe lifecycle activity live. Both handlers stream the signals of
// one bus topic, selected by the "event" and "id" query parameters.
package watch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/sakaicontrib/evaluation-sub013/v1/bus"
)

// topicFromQuery builds the bus topic from the request's "event" and "id"
// query parameters.
func topicFromQuery(r *http.Request) (string, error) {
	event := r.URL.Query().Get("event")
	if event == "" {
		return "", fmt.Errorf("missing event")
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("missing or invalid id")
	}
	return bus.Topic(event, id), nil
}

// SSEHandler streams domain events over Server-Sent Events. Each signal on
// the topic becomes one "data:" line carrying the topic name.
func SSEHandler(b bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic, err := topicFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		ch, err := b.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer func() {
			cancel()
			_ = b.Unsubscribe(context.Background(), topic, ch)
		}()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "stream unsupported", http.StatusInternalServerError)
			return
		}
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", topic); err != nil {
					return
				}
				flusher.Flush()
			case <-ctx.Done():
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{}

// WebSocketHandler streams domain events over WebSocket. Each signal on
// the topic becomes one text message carrying the topic name.
func WebSocketHandler(b bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic, err := topicFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ctx, cancel := context.WithCancel(r.Context())
		ch, err := b.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			return
		}
		defer func() {
			cancel()
			_ = b.Unsubscribe(context.Background(), topic, ch)
		}()
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(topic)); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

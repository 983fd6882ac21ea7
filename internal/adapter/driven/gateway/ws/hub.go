package ws

import (
	"context"
	"errors"

	"github.com/Wyydra/callcore/internal/core/domain"
	"github.com/Wyydra/callcore/internal/core/port"
	"github.com/rs/zerolog/log"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub fans call state out to every connected client. New clients get the
// latest state as soon as they register.
type Hub struct {
	clients    map[Client]bool
	last       *CallEvent
	broadcast  chan CallEvent
	register   chan Client
	unregister chan Client
	quit       chan struct{}
}

var _ port.CallNotifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		broadcast:  make(chan CallEvent),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) NotifyCall(ctx context.Context, call domain.CallRecord) error {
	select {
	case h.broadcast <- NewCallEvent(call):
		return nil
	case <-h.quit:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Info().Str("client_id", client.ID()).Msg("Client registered")
			if h.last != nil {
				h.send(client, *h.last)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				log.Info().Str("client_id", client.ID()).Msg("Client unregistered")
			}

		case event := <-h.broadcast:
			h.last = &event
			for client := range h.clients {
				h.send(client, event)
			}
		}
	}
}

func (h *Hub) send(client Client, event CallEvent) {
	if err := client.SendCall(event); err != nil {
		log.Error().Err(err).Str("client_id", client.ID()).Msg("Error sending call state")
		client.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) Register(c Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}

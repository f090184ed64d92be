// Package changefeed implementa el broadcast de transiciones de estado
// hacia los dashboards del médico y del paciente, con un hub de topics
// sobre WebSocket. Las notificaciones son señales de "algo cambió,
// re-consultar": entrega at-least-once, orden preservado por receta, y un
// suscriptor lento nunca bloquea la publicación (se descarta y re-sincroniza
// al reconectar).
package changefeed

import (
	"encoding/json"
	"sync"
	"time"

	"prescription-share/internal/platform/logger"
)

// Event es la notificación que viaja a los clientes suscriptos.
type Event struct {
	Type           string    `json:"type"`
	Topic          string    `json:"topic"`
	PrescriptionID string    `json:"prescription_id"`
	GrantID        string    `json:"grant_id,omitempty"`
	AccountID      string    `json:"account_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ClientMessage es un mensaje entrante de un cliente (suscripción dinámica).
type ClientMessage struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Topics []string `json:"topics"`
}

// Conn abstrae la conexión WebSocket para poder testear sin red.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client es una conexión suscripta a uno o más topics.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte

	hub  *Hub
	conn Conn
}

// Hub mantiene los clientes conectados y sus suscripciones por topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set de clientes
	all     map[*Client]struct{}

	log logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		log:     log,
	}
}

// Register agrega el cliente y lo suscribe a sus topics iniciales.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}

	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister saca al cliente de todos los topics y cierra su canal Send.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, topic := range client.Topics {
		if subs, ok := h.clients[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Subscribe agrega topics a un cliente ya registrado.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
	client.Topics = append(client.Topics, topics...)
}

// Unsubscribe quita topics de un cliente ya registrado.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
	}

	for _, topic := range topics {
		if subs, ok := h.clients[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage despacha un mensaje entrante del cliente.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast envía el evento a todos los suscriptos al topic.
// El send es no-bloqueante: si el buffer del cliente está lleno se descarta
// (el cliente re-sincroniza consultando el estado al reconectar).
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		if h.log != nil {
			h.log.Error("changefeed: marshal event", map[string]any{"error": err.Error()})
		}
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.clients[topic]
	if !ok {
		return
	}

	for client := range subs {
		select {
		case client.Send <- data:
		default:
			// buffer lleno; no bloqueamos al publicador
		}
	}
}

// ClientCount devuelve la cantidad de clientes conectados.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount devuelve cuántos clientes hay suscriptos a un topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

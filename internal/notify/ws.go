package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsClient writes events to one websocket connection.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(ev)
}

type inbound struct {
	Type string `json:"type"`
}

// Handler serves GET /ws/projects/{id}.
func Handler(hub *Hub, keepalive time.Duration, logger zerolog.Logger) http.Handler {
	log := logger.With().Str("component", "ws").Logger()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		projectID := r.PathValue("id")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("project_id", projectID).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		c := &wsClient{conn: conn}
		unregister := hub.Register(projectID, c)
		defer unregister()

		if err := c.Send(Connection(projectID)); err != nil {
			return
		}

		done := make(chan struct{})
		defer close(done)
		if keepalive > 0 {
			go func() {
				t := time.NewTicker(keepalive)
				defer t.Stop()
				for {
					select {
					case <-done:
						return
					case <-t.C:
						if err := c.Send(Keepalive(projectID)); err != nil {
							return
						}
					}
				}
			}()
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("project_id", projectID).Msg("websocket read")
				}
				return
			}
			var msg inbound
			if json.Unmarshal(data, &msg) != nil {
				continue
			}
			if msg.Type == "ping" {
				if err := c.Send(Pong(projectID)); err != nil {
					return
				}
			}
		}
	})
	return mux
}

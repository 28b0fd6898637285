package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"oshaberi/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 64 * 1024
)

// Server events.
const (
	eventUser  = "user"
	eventDelta = "delta"
	eventDone  = "done"
	eventAlert = "alert"
	eventError = "error"
)

type clientMessage struct {
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type serverEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type contentData struct {
	Content string `json:"content"`
}

type doneData struct {
	Content string `json:"content"`
	HTML    string `json:"html"`
	Stale   bool   `json:"stale,omitempty"`
}

type alertData struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// wsConn serializes data frames. Control frames go straight to the conn,
// which gorilla allows concurrently with other writers.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(serverEvent{Event: event, Data: data})
}

func (c *wsConn) keepAlive(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// unblocks the reader
			_ = c.conn.Close()
			return ctx.Err()
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	id, ok := sessionID(r)
	if !ok {
		id = chat.NewID()
		header.Add("Set-Cookie", newSessionCookie(id).String())
	}
	sess, release := s.store.Attach(id)
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session", id, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("websocket connected", "session", id)
	err = s.serveConn(r.Context(), &wsConn{conn: conn}, sess)
	if err != nil && !isClosed(err) {
		s.logger.Warn("websocket closed", "session", id, "error", err)
		return
	}
	s.logger.Info("websocket closed", "session", id)
}

// serveConn reads client messages and runs their turns one after another.
// The turn context ends with the connection, abandoning any live stream.
func (s *Server) serveConn(ctx context.Context, c *wsConn, sess *chat.Session) error {
	g, ctx := errgroup.WithContext(ctx)
	messages := make(chan clientMessage, 1)

	g.Go(func() error {
		defer close(messages)
		return s.readLoop(ctx, c, sess, messages)
	})
	g.Go(func() error {
		for msg := range messages {
			if err := s.runTurn(ctx, c, sess, msg); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		return c.keepAlive(ctx)
	})
	return g.Wait()
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, sess *chat.Session, messages chan<- clientMessage) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		sess.Touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := c.send(eventError, contentData{Content: "invalid message"}); err != nil {
				return err
			}
			continue
		}
		if msg.Type != "message" {
			if err := c.send(eventError, contentData{Content: "unsupported message type"}); err != nil {
				return err
			}
			continue
		}
		select {
		case messages <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.send(eventError, contentData{Content: "a reply is still streaming"}); err != nil {
				return err
			}
		}
	}
}

func (s *Server) runTurn(ctx context.Context, c *wsConn, sess *chat.Session, msg clientMessage) error {
	if msg.Temperature != nil {
		if err := sess.SetTemperature(*msg.Temperature); err != nil {
			return c.send(eventError, contentData{Content: err.Error()})
		}
	}
	if err := c.send(eventUser, contentData{Content: msg.Content}); err != nil {
		return err
	}

	result, err := s.chat.Turn(ctx, sess, msg.Content, func(fragment string) error {
		return c.send(eventDelta, contentData{Content: fragment})
	})
	if err != nil {
		var renderErr *chat.RenderError
		if ctx.Err() != nil || errors.As(err, &renderErr) {
			return err
		}
		s.logger.Error("turn failed", "session", sess.ID, "error", err)
		return c.send(eventError, contentData{Content: "the message could not be sent"})
	}
	if result.Alert != nil {
		return c.send(eventAlert, alertData{Kind: result.Alert.Kind.String(), Content: result.Alert.Message})
	}
	return c.send(eventDone, doneData{
		Content: result.Reply,
		HTML:    string(s.markdown.Render(result.Reply)),
		Stale:   result.Stale,
	})
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

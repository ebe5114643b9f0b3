package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// client owns the write side of one connection. Frames are queued on out
// and dropped when the queue is full.
type client struct {
	ws     wsConn
	remote string
	cfg    Config

	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(ws wsConn, remote string, cfg Config) *client {
	return &client{
		ws:     ws,
		remote: remote,
		cfg:    cfg,
		out:    make(chan []byte, cfg.ClientBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) send(data []byte) {
	select {
	case <-c.done:
	case c.out <- data:
	default:
		log.Warn().Str("component", "bridge").Str("remote", c.remote).Msg("client queue full, frame dropped")
	}
}

func (c *client) sendFrame(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Str("component", "bridge").Err(err).Msg("encode frame")
		return
	}
	c.send(data)
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writeLoop() {
	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(c.cfg.WriteTimeout))
			return
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.close()
				return
			}
		case data := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Str("component", "bridge").Str("remote", c.remote).Err(err).Msg("write failed")
				c.close()
				return
			}
		}
	}
}

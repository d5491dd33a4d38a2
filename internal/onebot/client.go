// Package onebot connects panelbot to a OneBot v11 endpoint over a forward
// WebSocket: message events come in, command replies go back out as message
// actions. Events are handled one at a time, in arrival order.
package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcsmops/panelbot/internal/command"
)

const (
	reconnectDelay = 5 * time.Second
	writeTimeout   = 10 * time.Second
)

// Dispatcher routes one chat command; it reports false for non-commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request, emit command.Emitter) bool
}

// GroupGate filters which group chats are serviced.
type GroupGate interface {
	GroupAllowed(groupID string) bool
}

type Client struct {
	url         string
	accessToken string
	dispatcher  Dispatcher
	groups      GroupGate

	mu   sync.Mutex // guards conn writes
	conn *websocket.Conn
}

func NewClient(url, accessToken string, dispatcher Dispatcher, groups GroupGate) *Client {
	return &Client{
		url:         url,
		accessToken: accessToken,
		dispatcher:  dispatcher,
		groups:      groups,
	}
}

type event struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	RawMessage  string `json:"raw_message"`
}

type action struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Run connects and serves events until the context is cancelled, reconnecting
// after connection loss.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.serve(ctx); err != nil {
			log.Warn().Err(err).Str("url", c.url).Msg("onebot connection lost")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) serve(ctx context.Context) error {
	header := http.Header{}
	if c.accessToken != "" {
		header.Set("Authorization", "Bearer "+c.accessToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Info().Str("url", c.url).Msg("onebot connected")

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleFrame(ctx, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Debug().Err(err).Msg("onebot frame not an event")
		return
	}
	if ev.PostType != "message" || ev.RawMessage == "" {
		return
	}

	groupID := ""
	if ev.MessageType == "group" {
		groupID = strconv.FormatInt(ev.GroupID, 10)
		if !c.groups.GroupAllowed(groupID) {
			return
		}
	}

	req := command.Request{
		UserID:  strconv.FormatInt(ev.UserID, 10),
		GroupID: groupID,
		Text:    ev.RawMessage,
	}
	c.dispatcher.Dispatch(ctx, req, func(line string) {
		c.reply(ev, line)
	})
}

func (c *Client) reply(ev event, text string) {
	msg := action{Params: map[string]any{"message": text}}
	if ev.MessageType == "group" {
		msg.Action = "send_group_msg"
		msg.Params["group_id"] = ev.GroupID
	} else {
		msg.Action = "send_private_msg"
		msg.Params["user_id"] = ev.UserID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Warn().Err(err).Msg("onebot reply failed")
	}
}

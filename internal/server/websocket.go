package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 << 10
)

// busyMessage is sent back for frames that arrive while the inbox is full.
const busyMessage = "still working on your previous messages, please wait for the reply"

// Websocket frame types.
const (
	frameMessage = "message"
	frameEnd     = "end"
	frameTurn    = "turn"
	frameReply   = "reply"
	frameEnded   = "ended"
	frameError   = "error"
)

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outboundFrame struct {
	Type    string           `json:"type"`
	Turn    *TurnView        `json:"turn,omitempty"`
	Reply   *MessageResponse `json:"reply,omitempty"`
	Ended   *EndResponse     `json:"ended,omitempty"`
	Session *SessionView     `json:"session,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// handleWebsocket streams transcript turns to the browser while the agent
// works. Reads and writes run in their own goroutines; requests are handled
// one at a time by a worker so long model calls do not stall pong handling.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Err(err))
		return
	}

	key := clientKeyFrom(r)
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	send := make(chan outboundFrame, 32)
	inbox := make(chan inboundFrame, 4)

	go s.wsWritePump(ctx, conn, send)
	go s.wsWorker(ctx, key, inbox, send)

	s.wsReadPump(conn, inbox, send)
	close(inbox)
}

// wsReadPump owns inbox. send stays open until the caller closes inbox.
func (s *Server) wsReadPump(conn *websocket.Conn, inbox chan<- inboundFrame, send chan<- outboundFrame) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", logging.Err(err))
			}
			return
		}
		var f inboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug("ignoring malformed websocket frame", logging.Err(err))
			continue
		}
		select {
		case inbox <- f:
		default:
			s.logger.Debug("dropping websocket frame while busy", "type", f.Type)
			select {
			case send <- outboundFrame{Type: frameError, Error: busyMessage}:
			default:
			}
		}
	}
}

// wsWorker looks the conversation up for every frame so an idle sweep
// between frames never leaves the socket on a dropped conversation.
func (s *Server) wsWorker(ctx context.Context, key string, inbox <-chan inboundFrame, send chan<- outboundFrame) {
	emit := func(f outboundFrame) {
		select {
		case send <- f:
		case <-ctx.Done():
		}
	}

	for f := range inbox {
		conv := s.cfg.Manager.Conversation(key)
		switch f.Type {
		case frameMessage:
			observe := func(t conversation.Turn) {
				v := turnView(t)
				emit(outboundFrame{Type: frameTurn, Turn: &v})
			}
			reply, err := conv.Send(ctx, f.Text, observe)
			if reply == nil && err != nil {
				emit(outboundFrame{Type: frameError, Error: err.Error()})
				continue
			}
			resp := messageResponse(conv, reply, err)
			emit(outboundFrame{Type: frameReply, Reply: &resp})

		case frameEnd:
			res, err := conv.End(ctx)
			if err != nil {
				emit(outboundFrame{Type: frameEnded, Ended: &EndResponse{Error: err.Error(), Warning: saveWarning}})
				continue
			}
			view := sessionView(conv.Snapshot())
			emit(outboundFrame{Type: frameEnded, Ended: &EndResponse{EndResult: res}, Session: &view})

		default:
			emit(outboundFrame{Type: frameError, Error: "unknown frame type: " + f.Type})
		}
	}
	close(send)
}

func (s *Server) wsWritePump(ctx context.Context, conn *websocket.Conn, send <-chan outboundFrame) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case f, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(f); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Debug("websocket write failed", logging.Err(err))
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/boxkeeper/internal/command"
	"github.com/MrWong99/boxkeeper/internal/observe"
)

// wsRequest is one client message on /v1/ws.
type wsRequest struct {
	Text string `json:"text"`
}

// wsResponse answers one wsRequest.
type wsResponse struct {
	Message string `json:"message"`
	command.Reply
}

// serveWS runs a conversation over a WebSocket. The connection owns one
// command session, so a follow-up answer fills the previous prompt.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		observe.Logger(r.Context()).Warn("api: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBody)

	ctx := r.Context()
	s.metrics.ActiveConnections.Add(ctx, 1)
	defer s.metrics.ActiveConnections.Add(context.WithoutCancel(ctx), -1)

	log := observe.Logger(ctx)
	log.Info("api: websocket connected", "remote", r.RemoteAddr)

	sess := s.exec.NewSession()
	for {
		var req wsRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				log.Info("api: websocket closed", "remote", r.RemoteAddr)
				return
			}
			log.Warn("api: websocket read failed", "err", err)
			conn.Close(websocket.StatusUnsupportedData, "expected a JSON object with a text field")
			return
		}

		reply := sess.Handle(ctx, req.Text)
		if err := wsjson.Write(ctx, conn, wsResponse{Message: reply.Text(), Reply: reply}); err != nil {
			log.Warn("api: websocket write failed", "err", err)
			return
		}
	}
}

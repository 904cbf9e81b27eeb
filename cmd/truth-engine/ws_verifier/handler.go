package wsverifier

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/model"
	"github.com/venkatnarayana7/Python-Debugger/generator"
	"github.com/venkatnarayana7/Python-Debugger/progress"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Register registers the handler
type Register interface {
	Register(*gin.Engine)
}

type wsHandle struct {
	verifier model.Verifier
	logger   *zap.Logger
}

// New creates a new WebSocket handle that streams progress events and the
// final result of one verification per connection
func New(verifier model.Verifier, logger *zap.Logger) Register {
	return &wsHandle{
		verifier: verifier,
		logger:   logger,
	}
}

func (h *wsHandle) Register(r *gin.Engine) {
	r.GET("/ws", h.handleWS)
}

func (h *wsHandle) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var req model.ClientMessage
	if err := conn.ReadJSON(&req); err != nil {
		h.logger.Debug("ws read request", zap.Error(err))
		return
	}
	sub, err := model.ConvertRequest(&req.Request)
	if err != nil {
		writeMessage(conn, model.StreamMessage{Type: model.MessageError, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	log := progress.New()
	go func() {
		log.Finish(h.verifier.Verify(ctx, sub, log))
	}()
	// wait for the verification to release its resources on every path
	defer func() {
		cancel()
		<-log.Done()
	}()

	// read cancel requests
	go func() {
		for {
			var m model.ClientMessage
			if err := conn.ReadJSON(&m); err != nil {
				cancel()
				return
			}
			if m.Cancel {
				h.logger.Debug("ws cancel requested")
				cancel()
			}
		}
	}()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	events := log.Watch(watchCtx)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				rt, _ := log.Result()
				r := model.ConvertResult(rt)
				writeMessage(conn, model.StreamMessage{
					Type:      model.MessageResult,
					Result:    &r,
					Libraries: generator.DetectLibraries(sub.Code),
				})
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			me := model.ConvertEvent(e)
			if err := writeMessage(conn, model.StreamMessage{Type: model.MessageEvent, Event: &me}); err != nil {
				h.logger.Debug("ws write", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, m model.StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}

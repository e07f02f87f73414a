package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsReadLimit = 4096
	wsIdleLimit = 60 * time.Second
	wsWriteWait = 10 * time.Second
)

// wsRequest is one live-preview query. ID is echoed so clients can match
// replies to keystrokes.
type wsRequest struct {
	ID     string      `json:"id,omitempty"`
	Weight interface{} `json:"weight"`
}

func (h *Handlers) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if originAllowed(h.AllowedOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// handlePredictWS answers each text frame with the /predict JSON payload.
func (h *Handlers) handlePredictWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger().Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	requestID := GetRequestID(r.Context())
	log := h.logger().With(zap.String("request_id", requestID))
	log.Debug("websocket client connected")

	conn.SetReadLimit(wsReadLimit)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleLimit))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		reply := h.answer(r, data)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *Handlers) answer(r *http.Request, data []byte) interface{} {
	start := time.Now()

	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		err = h.Service.InvalidInput(err)
		h.observe(r, endpointWS, start, err)
		return newFailure(err)
	}

	res, err := h.Service.Predict(req.Weight)
	h.observe(r, endpointWS, start, err)
	if err != nil {
		f := newFailure(err)
		f.ID = req.ID
		return f
	}
	s := newFormSuccess(res)
	s.ID = req.ID
	return s
}

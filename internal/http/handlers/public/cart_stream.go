package public

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPongTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
)

func (h *Handler) streamUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.allowStreamOrigin,
	}
}

// allowStreamOrigin 浏览器握手的 Origin 必须与本站同源或在 cors.allowed_origins 中；
// 不带 Origin 的非浏览器客户端直接放行
func (h *Handler) allowStreamOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if h.Config == nil {
		return false
	}
	for _, allowed := range h.Config.CORS.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// CartStreamEvent 推送事件
type CartStreamEvent struct {
	Type    string            `json:"type"` // cart / subject
	Cart    *cart.Snapshot    `json:"cart,omitempty"`
	Subject *identity.Subject `json:"subject,omitempty"`
}

// StreamCart 通过 websocket 推送购物车与主体变化，连接建立后先推送一次当前状态
func (h *Handler) StreamCart(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	log := requestLog(c).With("session_id", sess.ID)

	conn, err := h.streamUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已写回 HTTP 错误
		log.Warnw("cart_stream_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	cartChanged, stopCart := sess.Store.Watch()
	defer stopCart()
	subjects, stopSubjects := sess.Stream.Subscribe()
	defer stopSubjects()

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	snapshot := sess.Store.Snapshot()
	if err := writeStreamEvent(conn, CartStreamEvent{Type: "cart", Cart: &snapshot}); err != nil {
		return
	}
	log.Debugw("cart_stream_opened")

	for {
		select {
		case <-closed:
			log.Debugw("cart_stream_closed")
			return
		case <-c.Request.Context().Done():
			return
		case _, open := <-cartChanged:
			if !open {
				return
			}
			snapshot := sess.Store.Snapshot()
			if err := writeStreamEvent(conn, CartStreamEvent{Type: "cart", Cart: &snapshot}); err != nil {
				log.Debugw("cart_stream_write_failed", "error", err)
				return
			}
		case subject, open := <-subjects:
			if !open {
				return
			}
			if err := writeStreamEvent(conn, CartStreamEvent{Type: "subject", Subject: &subject}); err != nil {
				log.Debugw("cart_stream_write_failed", "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func writeStreamEvent(conn *websocket.Conn, event CartStreamEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// readUntilClosed 消费客户端消息以处理 pong 与关闭帧
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

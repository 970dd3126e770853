package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/service/order/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 后台页面与 API 同源部署之外的情况一律放行
		return true
	},
}

// OrderFeedHub 维护所有订阅订单动态的 WebSocket 连接，并负责广播。
// 同时实现了 port.NotificationProducer，可以直接挂在下单链路的末端。
type OrderFeedHub struct {
	clients    map[*feedClient]struct{}
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan *domain.OrderEvent
	done       chan struct{}
	lock       sync.RWMutex
}

func NewOrderFeedHub() *OrderFeedHub {
	return &OrderFeedHub{
		clients:    make(map[*feedClient]struct{}),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan *domain.OrderEvent, 64),
		done:       make(chan struct{}),
	}
}

// Run 处理注册、注销与广播，直到 ctx 结束。
func (h *OrderFeedHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client] = struct{}{}
			h.lock.Unlock()
			logger.Ctx(ctx).Debug().Str("client", client.id).Msg("order feed client registered")
		case client := <-h.unregister:
			h.remove(client)
		case event := <-h.broadcast:
			h.fanOut(ctx, event)
		case <-ctx.Done():
			h.lock.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.lock.Unlock()
			return
		}
	}
}

// Broadcast 把事件排入广播队列；队列满时丢弃并返回 false。
func (h *OrderFeedHub) Broadcast(event *domain.OrderEvent) bool {
	select {
	case h.broadcast <- event:
		return true
	default:
		return false
	}
}

func (h *OrderFeedHub) SendOrderPlaced(ctx context.Context, order *domain.Order) error {
	h.publish(ctx, domain.NewOrderEvent(uuid.NewString(), domain.EventOrderPlaced, order))
	return nil
}

func (h *OrderFeedHub) SendOrderCancelled(ctx context.Context, order *domain.Order) error {
	h.publish(ctx, domain.NewOrderEvent(uuid.NewString(), domain.EventOrderCancelled, order))
	return nil
}

func (h *OrderFeedHub) publish(ctx context.Context, event *domain.OrderEvent) {
	if !h.Broadcast(event) {
		logger.Ctx(ctx).Warn().Int64("order_id", event.OrderID).Msg("order feed queue full, event dropped")
	}
}

// ClientCount 返回当前连接数
func (h *OrderFeedHub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

func (h *OrderFeedHub) fanOut(ctx context.Context, event *domain.OrderEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to marshal order event")
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	for client := range h.clients {
		if client.customerID != 0 && client.customerID != event.CustomerID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// 消费过慢的客户端直接断开
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *OrderFeedHub) remove(client *feedClient) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// ServeHTTP 把请求升级为 WebSocket。可选参数 customerId 只订阅该客户的订单。
func (h *OrderFeedHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var customerID int64
	if v := r.URL.Query().Get("customerId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "customerId must be a positive integer", http.StatusBadRequest)
			return
		}
		customerID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &feedClient{
		id:         uuid.NewString(),
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, clientSendSize),
		customerID: customerID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// feedClient 是一个 WebSocket 连接的代表
type feedClient struct {
	id         string
	hub        *OrderFeedHub
	conn       *websocket.Conn
	send       chan []byte
	customerID int64
}

// writePump 负责将 send channel 中的消息写入 websocket，并定期发送心跳
func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理心跳与关闭，客户端发来的内容被丢弃
func (c *feedClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

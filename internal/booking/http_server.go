package booking

import (
	"errors"
	"net/http"

	"github.com/StudentGarage/StudentGarage/internal/common/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// HTTPServer 预约相关的 HTTP/WebSocket 入口。
type HTTPServer struct {
	svc *Service
	log logger.Logger
}

func NewHTTPServer(svc *Service, log logger.Logger) *HTTPServer {
	return &HTTPServer{svc: svc, log: log}
}

// RegisterRoutes 挂路由：提交要求登录，查看/订阅要求 admin。
func (s *HTTPServer) RegisterRoutes(authed, admin *gin.RouterGroup) {
	authed.POST("/bookings", s.handleSubmit)
	admin.GET("/bookings", s.handleList)
	admin.GET("/bookings/watch", s.handleWatch)
}

func (s *HTTPServer) handleSubmit(c *gin.Context) {
	var in Fields
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	b, err := s.svc.Submit(c.Request.Context(), in)
	if err != nil {
		var incomplete *IncompleteSubmissionError
		if errors.As(err, &incomplete) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          "incomplete submission",
				"missing_fields": incomplete.MissingFields,
			})
			return
		}
		if s.log != nil {
			s.log.Errorf("submit booking failed: %v", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking store unavailable"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": b})
}

func (s *HTTPServer) handleList(c *gin.Context) {
	bookings, err := s.svc.List(c.Request.Context())
	if err != nil {
		if s.log != nil {
			s.log.Errorf("list bookings failed: %v", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// snapshotEvent WebSocket 推送格式。
type snapshotEvent struct {
	Event string           `json:"event"`
	Data  snapshotPayload  `json:"data"`
}

type snapshotPayload struct {
	Bookings []Booking `json:"bookings"`
}

// handleWatch 升级为 WebSocket，连上先推当前快照，之后每次变化推全量快照。
// 连接断开（或客户端主动关闭）即释放订阅，不会再有回调触发。
func (s *HTTPServer) handleWatch(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub, err := s.svc.Subscribe(c.Request.Context())
	if err != nil {
		if s.log != nil {
			s.log.Errorf("booking watch subscribe failed: %v", err)
		}
		return
	}
	defer sub.Close()

	// read loop: 只为感知断连；不处理入站消息
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for snapshot := range sub.C() {
		msg := snapshotEvent{
			Event: "bookings.snapshot",
			Data:  snapshotPayload{Bookings: snapshot},
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

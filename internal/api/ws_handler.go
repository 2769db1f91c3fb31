package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"talentbridge/internal/auth"
)

// 客户端必须在该窗口内完成 auth 消息，否则断开。
const wsAuthTimeout = 10 * time.Second

const wsWriteTimeout = 5 * time.Second

// NotifyHandler 通过 WebSocket 向已登录用户推送异步事件：
// 简历导出完成/失败、成就到账。客户端连上后先发送 auth 消息，
// 之后服务端把该用户 Redis 频道上的消息原样转发过去。
type NotifyHandler struct {
	redisClient    redis.UniversalClient
	authService    *auth.AuthService
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewNotifyHandler 构造通知推送处理器。
func NewNotifyHandler(redisClient redis.UniversalClient, authService *auth.AuthService, logger *slog.Logger, allowedOrigins []string) *NotifyHandler {
	h := &NotifyHandler{
		redisClient:    redisClient,
		authService:    authService,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection 升级连接、完成鉴权，然后把 Redis 通知转发给客户端，
// 直到任意一侧断开。
func (h *NotifyHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	baseLog := h.logger.With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn)
	if err != nil {
		baseLog.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}

	userLog := baseLog.With(slog.Uint64("user_id", uint64(userID)))
	userLog.Info("websocket authenticated")

	// 告知客户端订阅已就绪，之后推送的都是业务通知。
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ready"}`)); err != nil {
		userLog.Info("websocket ready ack failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go h.forwardLoop(ctx, conn, userID, errCh, userLog)
	go drainLoop(conn, errCh)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			userLog.Info("websocket connection closed", slog.Any("error", err))
		} else {
			userLog.Info("websocket connection closed")
		}
	}
}

// authenticate 同步读取首条消息并校验访问令牌。
// 鉴权窗口内必须完成，失败时带关闭帧断开。
func (h *NotifyHandler) authenticate(conn *websocket.Conn) (uint, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	defer func() {
		_ = conn.SetReadDeadline(time.Time{})
	}()

	_, message, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("read auth message: %w", err)
	}

	var authMsg wsAuthMessage
	if err := json.Unmarshal(message, &authMsg); err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "invalid auth payload")
		return 0, fmt.Errorf("decode auth payload: %w", err)
	}
	if authMsg.Type != "auth" || authMsg.Token == "" {
		writeClose(conn, websocket.ClosePolicyViolation, "auth required")
		return 0, fmt.Errorf("invalid auth message")
	}

	claims, err := h.authService.ValidateToken(authMsg.Token)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
		return 0, fmt.Errorf("validate token: %w", err)
	}
	if claims.TokenType != auth.TokenTypeAccess {
		writeClose(conn, websocket.ClosePolicyViolation, "access token required")
		return 0, fmt.Errorf("invalid token type: %s", claims.TokenType)
	}

	return claims.UserID, nil
}

// forwardLoop 订阅用户频道并把消息转发到连接上，定时 ping 保活。
func (h *NotifyHandler) forwardLoop(
	ctx context.Context,
	conn *websocket.Conn,
	userID uint,
	errCh chan<- error,
	log *slog.Logger,
) {
	channel := fmt.Sprintf("user_notify:%d", userID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				return
			}

			log.Info("forwarding message to client", slog.String("channel", channel))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				return
			}
		}
	}
}

// drainLoop 持续读取并丢弃客户端消息，借此感知断开。
func drainLoop(conn *websocket.Conn, errCh chan<- error) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

package session

import (
	"errors"
	"net/http"

	"github.com/StudentGarage/StudentGarage/internal/account"
	"github.com/StudentGarage/StudentGarage/internal/common/logger"
	"github.com/StudentGarage/StudentGarage/internal/common/server"
	"github.com/gin-gonic/gin"
)

// HTTPServer 认证相关的 HTTP 入口。
type HTTPServer struct {
	gate *Gate
	log  logger.Logger
}

func NewHTTPServer(gate *Gate, log logger.Logger) *HTTPServer {
	return &HTTPServer{gate: gate, log: log}
}

// RegisterRoutes 挂路由：注册/登录公开，登出要求带有效令牌。
func (s *HTTPServer) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.POST("/auth/register", s.handleRegister)
	public.POST("/auth/login", s.handleLogin)
	authed.POST("/auth/logout", s.handleLogout)
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AdminIntent bool   `json:"adminIntent"`
	AdminSecret string `json:"adminSecret"`
}

func (s *HTTPServer) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	sess, err := s.gate.SignUp(c.Request.Context(), account.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		AdminIntent: req.AdminIntent,
		AdminSecret: req.AdminSecret,
	})
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidAdminSecret):
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid admin secret"})
		case errors.Is(err, account.ErrDuplicateAccount):
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	sess, err := s.gate.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if s.log != nil {
			s.log.Errorf("login failed: %v", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "account store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// handleLogout 吊销当前请求携带的令牌。重复登出返回同样的 204。
func (s *HTTPServer) handleLogout(c *gin.Context) {
	ai, ok := server.AuthFromGin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	if err := s.gate.SignOut(c.Request.Context(), ai.TokenID, ai.ExpiresAt); err != nil {
		if s.log != nil {
			s.log.Errorf("logout failed: %v", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}

	c.Status(http.StatusNoContent)
}

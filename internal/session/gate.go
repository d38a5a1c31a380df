package session

import (
	"context"
	"fmt"
	"time"

	"github.com/StudentGarage/StudentGarage/internal/account"
	"github.com/StudentGarage/StudentGarage/internal/common/auth"
	"github.com/StudentGarage/StudentGarage/internal/common/config"
	"github.com/StudentGarage/StudentGarage/internal/common/logger"
)

// Session 一次已建立的登录态。
type Session struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"-"`
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
	State     Status    `json:"state"`
}

// Gate 会话门面：注册/登录/登出都从这里走。
// 令牌本身无状态（JWT），登出通过吊销表让单个令牌立即失效。
type Gate struct {
	accounts *account.Service
	registry TokenRegistry
	authCfg  config.AuthConfig
	log      logger.Logger
}

func NewGate(accounts *account.Service, registry TokenRegistry, authCfg config.AuthConfig, log logger.Logger) *Gate {
	return &Gate{
		accounts: accounts,
		registry: registry,
		authCfg:  authCfg,
		log:      log,
	}
}

// SignIn 邮箱+口令登录，成功后发放新令牌。
// 凭据错误统一返回 account.ErrInvalidCredentials，不泄露具体哪项错了。
func (g *Gate) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if g == nil || g.accounts == nil {
		return nil, fmt.Errorf("gate not initialized")
	}
	a, err := g.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return g.issue(ctx, a)
}

// SignUp 注册并直接建立登录态：注册成功的调用方无需再走一次登录。
func (g *Gate) SignUp(ctx context.Context, in account.RegisterInput) (*Session, error) {
	if g == nil || g.accounts == nil {
		return nil, fmt.Errorf("gate not initialized")
	}
	a, err := g.accounts.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return g.issue(ctx, a)
}

// SignOut 吊销指定令牌。对已吊销/已过期的令牌重复登出是 no-op。
func (g *Gate) SignOut(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if g == nil || g.registry == nil {
		return fmt.Errorf("gate not initialized")
	}
	if _, err := Transition(StatusAuthenticated, StatusAnonymous); err != nil {
		return err
	}
	ttl := time.Until(expiresAt)
	if err := g.registry.Revoke(ctx, tokenID, ttl); err != nil {
		return err
	}
	if g.log != nil {
		g.log.Infof("session revoked jti=%s", tokenID)
	}
	return nil
}

// Authorize 校验令牌并返回其会话视图：签名/有效期/iss/aud 全部通过，
// 且未被吊销。吊销表查询失败按无效处理（fail closed）。
func (g *Gate) Authorize(ctx context.Context, tokenStr string) (*Session, error) {
	if g == nil || g.registry == nil {
		return nil, fmt.Errorf("gate not initialized")
	}
	claims, err := auth.ParseAccessToken(g.authCfg, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	if g.RevocationChecker()(ctx, claims.ID) {
		return nil, fmt.Errorf("invalid token")
	}

	sess := &Session{
		Token:     tokenStr,
		TokenID:   claims.ID,
		AccountID: claims.Subject,
		Roles:     claims.Roles,
		State:     StatusAuthenticated,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// RevocationChecker 给鉴权中间件用的吊销查询。
// 吊销表查询失败按“已吊销”处理：宁可误伤也不放行登出过的令牌。
func (g *Gate) RevocationChecker() func(ctx context.Context, tokenID string) bool {
	return func(ctx context.Context, tokenID string) bool {
		if g == nil || g.registry == nil {
			return false
		}
		revoked, err := g.registry.IsRevoked(ctx, tokenID)
		if err != nil {
			if g.log != nil {
				g.log.Warnf("revocation lookup failed jti=%s: %v", tokenID, err)
			}
			return true
		}
		return revoked
	}
}

// issue 给账号签发新令牌：角色从管理员记录表实时读取。
func (g *Gate) issue(ctx context.Context, a *account.Account) (*Session, error) {
	isAdmin, err := g.accounts.IsAdmin(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	roles := account.Roles(isAdmin)

	ttl := time.Duration(g.authCfg.TokenTTLMinutesOrDefault()) * time.Minute
	token, tokenID, expiresAt, err := auth.GenerateAccessToken(g.authCfg, a.ID, roles, ttl)
	if err != nil {
		return nil, err
	}

	state, err := Transition(StatusAnonymous, StatusAuthenticated)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		TokenID:   tokenID,
		AccountID: a.ID,
		Email:     a.Email,
		Roles:     roles,
		ExpiresAt: expiresAt,
		State:     state,
	}, nil
}

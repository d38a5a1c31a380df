package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/StudentGarage/StudentGarage/internal/common/logger"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials 登录失败：不区分“账号不存在”和“密码错误”。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidAdminSecret 管理员注册口令不匹配（或管理员注册未开放）。
	ErrInvalidAdminSecret = errors.New("invalid admin secret")
	// ErrDuplicateAccount 邮箱已被注册。
	ErrDuplicateAccount = errors.New("account already exists")
)

// Mailer 验证邮件发送方（账号服务只管触发，不管投递结果）。
type Mailer interface {
	SendVerification(ctx context.Context, email string) error
}

// Service 封装账号领域的核心用例（不依赖 HTTP），便于复用和测试。
type Service struct {
	repo        Repository
	mailer      Mailer // 可为 nil（未配置邮件）
	adminSecret string
	log         logger.Logger
}

func NewService(repo Repository, mailer Mailer, adminSecret string, log logger.Logger) *Service {
	return &Service{
		repo:        repo,
		mailer:      mailer,
		adminSecret: strings.TrimSpace(adminSecret),
		log:         log,
	}
}

// RegisterInput 注册入参。
type RegisterInput struct {
	Email       string
	Password    string
	AdminIntent bool   // 是否申请管理员账号
	AdminSecret string // 管理员注册口令（仅 AdminIntent 时校验）
}

// Register 注册账号。
// 管理员口令校验在任何写入之前完成：口令不对就什么都不创建（fail closed）。
// 写入顺序固定：先建账号，再写管理员记录，最后异步发验证邮件；
// 邮件失败只记日志，不回滚账号。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	if in.AdminIntent && !s.adminSecretMatches(in.AdminSecret) {
		return nil, ErrInvalidAdminSecret
	}

	// check existence
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateAccount
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	a := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if in.AdminIntent {
		g := &AdminGrant{AccountID: a.ID, Email: a.Email}
		if err := s.repo.CreateAdminGrant(ctx, g); err != nil {
			return nil, fmt.Errorf("account created but admin grant failed: %w", err)
		}
	}

	s.sendVerificationAsync(a.Email)
	return a, nil
}

// Authenticate 校验邮箱+口令。
// 任何一项不匹配都返回同一个 ErrInvalidCredentials，不泄露哪项错了。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(password, a.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// IsAdmin 查管理员记录表：没有记录就是 false，不算错误。
func (s *Service) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	if s == nil || s.repo == nil {
		return false, fmt.Errorf("service not initialized")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return false, nil
	}
	_, err := s.repo.FindAdminGrant(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnsureAdmin 运维工具用的带外管理员开通：幂等。
// 账号不存在则创建；已存在则只补管理员记录。返回值表示是否新建了账号。
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*Account, bool, error) {
	if s == nil || s.repo == nil {
		return nil, false, fmt.Errorf("service not initialized")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, false, fmt.Errorf("invalid email: %w", err)
	}

	a, err := s.repo.FindByEmail(ctx, email)
	created := false
	switch {
	case errors.Is(err, ErrNotFound):
		if len(password) < minPasswordLen {
			return nil, false, fmt.Errorf("password must be at least %d characters", minPasswordLen)
		}
		hash, hashErr := HashPassword(password)
		if hashErr != nil {
			return nil, false, hashErr
		}
		a = &Account{ID: uuid.NewString(), Email: email, PasswordHash: hash}
		if err := s.repo.Create(ctx, a); err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, err
	}

	if _, err := s.repo.FindAdminGrant(ctx, a.ID); errors.Is(err, ErrNotFound) {
		if err := s.repo.CreateAdminGrant(ctx, &AdminGrant{AccountID: a.ID, Email: a.Email}); err != nil {
			return nil, created, err
		}
	} else if err != nil {
		return nil, created, err
	}
	return a, created, nil
}

// adminSecretMatches 恒定时间比较；配置里没下发口令时管理员注册整体关闭。
func (s *Service) adminSecretMatches(got string) bool {
	if s.adminSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.adminSecret), []byte(strings.TrimSpace(got))) == 1
}

// sendVerificationAsync 异步触发验证邮件；投递失败只记日志。
func (s *Service) sendVerificationAsync(email string) {
	if s.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.mailer.SendVerification(ctx, email); err != nil && s.log != nil {
			s.log.Warnf("verification mail to %s failed: %v", email, err)
		}
	}()
}

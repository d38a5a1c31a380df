package account

import (
	"time"
)

// Account 是 accounts 表的 GORM 模型。
// 口令凭据只存 bcrypt 哈希；账号创建后除凭据外只读，不提供删除。
type Account struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// AdminGrant 是 admin_grants 表的 GORM 模型：独立的管理员记录表。
// 只在注册（或运维工具）时写入，之后任何 API 都不会改写；
// 账号在该表无记录即视为非管理员。
type AdminGrant struct {
	AccountID string    `gorm:"primaryKey;size:36"`
	Email     string    `gorm:"size:128;not null"`
	GrantedAt time.Time `gorm:"autoCreateTime"`
}

// Roles 返回账号的角色列表（RBAC 用）。
func Roles(isAdmin bool) []string {
	if isAdmin {
		return []string{"user", "admin"}
	}
	return []string{"user"}
}

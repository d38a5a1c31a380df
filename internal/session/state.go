package session

import "fmt"

// Status 会话状态。
type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// AllowTransition 定义会话状态机的允许流转关系。
// 登录/注册成功：anonymous -> authenticated；登出或令牌过期：authenticated -> anonymous。
var AllowTransition = map[Status][]Status{
	StatusAnonymous:     {StatusAuthenticated},
	StatusAuthenticated: {StatusAnonymous},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition 校验并返回目标状态。重复进入同一状态视为 no-op（重复登出不报错）。
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid session transition: %s -> %s", from, to)
	}
	return to, nil
}

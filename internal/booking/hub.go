package booking

import (
	"sync"

	"github.com/google/uuid"
)

// Hub 全量快照广播器：每次预约集合变化时，向所有订阅者推送一份完整快照。
// 推的是快照不是增量——消费端永远拿到“当前全集”，不需要自己做合并。
type Hub struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	seq  uint64 // 广播序号，用于判断初始快照是否已经过期
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscription)}
}

// Subscription 一次订阅。通道缓冲为 1，慢消费者只保留最新快照（latest wins），
// 绝不反压提交方。Close 幂等，关闭后不会再收到任何快照。
type Subscription struct {
	id      string
	hub     *Hub
	ch      chan []Booking
	joinSeq uint64 // 注册时的广播序号
	once    sync.Once
}

// C 快照接收通道；订阅关闭后该通道被 close。
func (s *Subscription) C() <-chan []Booking {
	return s.ch
}

// Close 取消订阅并释放资源。重复调用是 no-op。
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

// Subscribe 注册一个订阅者。
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:  uuid.NewString(),
		hub: h,
		ch:  make(chan []Booking, 1),
	}
	h.mu.Lock()
	sub.joinSeq = h.seq
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Broadcast 向所有订阅者推送快照：先清掉未消费的旧快照再放新快照。
func (h *Hub) Broadcast(snapshot []Booking) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	for _, sub := range h.subs {
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

// push 给单个订阅者送初始快照。
// 注册之后已经有过广播（seq 前进了）说明订阅者手里/队列里是更新的快照，
// 此时丢弃这份初始快照，避免把旧集合盖到新集合后面。
func (h *Hub) push(sub *Subscription, snapshot []Booking) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	if h.seq != sub.joinSeq {
		return
	}
	select {
	case sub.ch <- snapshot:
	default:
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
}

// Len 当前订阅者数量（监控/测试用）。
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

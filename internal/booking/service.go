package booking

import (
	"context"
	"fmt"

	"github.com/StudentGarage/StudentGarage/internal/common/logger"
	"github.com/google/uuid"
)

// Service 封装预约领域的核心用例（不依赖 HTTP），便于复用和测试。
type Service struct {
	repo  Repository
	hub   *Hub
	cache SnapshotCache // 可为 nil（未配置 Redis）
	log   logger.Logger
}

func NewService(repo Repository, hub *Hub, cache SnapshotCache, log logger.Logger) *Service {
	if hub == nil {
		hub = NewHub()
	}
	return &Service{repo: repo, hub: hub, cache: cache, log: log}
}

// Submit 提交一条预约。
// 11 个字段全部必填，缺任何一个都返回 *IncompleteSubmissionError 且不落库。
// 写入成功后向所有订阅者广播新的全量快照。
func (s *Service) Submit(ctx context.Context, in Fields) (*Booking, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}

	f := in.trimmed()
	b := &Booking{
		ID:           uuid.NewString(),
		Name:         f.Name,
		Address:      f.Address,
		City:         f.City,
		PhoneNumber:  f.PhoneNumber,
		VehicleMake:  f.VehicleMake,
		VehicleModel: f.VehicleModel,
		VehicleYear:  f.VehicleYear,
		VINNumber:    f.VINNumber,
		Mileage:      f.Mileage,
		Complaint:    f.Complaint,
		Date:         f.Date,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	s.publish(ctx)
	return b, nil
}

// List 返回全量预约，按提交时间稳定排序。
func (s *Service) List(ctx context.Context) ([]Booking, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.repo.List(ctx)
}

// Subscribe 开始订阅全量快照：连上先推一份当前快照，之后每次变化推新快照。
// 调用方负责 Close（幂等）。
func (s *Service) Subscribe(ctx context.Context) (*Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	sub := s.hub.Subscribe()
	snapshot, err := s.repo.List(ctx)
	if err != nil {
		// 数据库不可用时退回缓存快照（可能略旧），缓存也没有才报错
		cached, cerr := s.loadCached(ctx)
		if cerr != nil {
			sub.Close()
			return nil, err
		}
		if s.log != nil {
			s.log.Warnf("list bookings failed, serving cached snapshot: %v", err)
		}
		snapshot = cached
	}
	s.hub.push(sub, snapshot)
	return sub, nil
}

func (s *Service) loadCached(ctx context.Context) ([]Booking, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("snapshot cache not configured")
	}
	return s.cache.Load(ctx)
}

// publish 重建快照并广播；快照镜像进缓存，缓存失败只记日志。
func (s *Service) publish(ctx context.Context) {
	snapshot, err := s.repo.List(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("rebuild booking snapshot failed: %v", err)
		}
		return
	}
	s.hub.Broadcast(snapshot)

	if s.cache != nil {
		if err := s.cache.Store(ctx, snapshot); err != nil && s.log != nil {
			s.log.Warnf("mirror booking snapshot to cache failed: %v", err)
		}
	}
}

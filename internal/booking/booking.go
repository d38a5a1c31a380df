package booking

import (
	"fmt"
	"strings"
	"time"
)

// Booking 是 bookings 表的 GORM 模型。
// 记录一旦提交即不可变：没有更新/删除路径。
// Date 是客户端填写的自由文本（不可信），排序一律用服务端的 CreatedAt。
type Booking struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Address      string    `gorm:"size:255;not null" json:"address"`
	City         string    `gorm:"size:64;not null" json:"city"`
	PhoneNumber  string    `gorm:"size:32;not null" json:"phoneNumber"`
	VehicleMake  string    `gorm:"size:64;not null" json:"vehicleMake"`
	VehicleModel string    `gorm:"size:64;not null" json:"vehicleModel"`
	VehicleYear  string    `gorm:"size:8;not null" json:"vehicleYear"`
	VINNumber    string    `gorm:"column:vin_number;size:64;not null" json:"vinNumber"`
	Mileage      string    `gorm:"size:16;not null" json:"mileage"`
	Complaint    string    `gorm:"size:1024;not null" json:"complaint"`
	Date         string    `gorm:"size:32;not null" json:"date"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// Fields 提交入参：11 个字段全部必填。
type Fields struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	City         string `json:"city"`
	PhoneNumber  string `json:"phoneNumber"`
	VehicleMake  string `json:"vehicleMake"`
	VehicleModel string `json:"vehicleModel"`
	VehicleYear  string `json:"vehicleYear"`
	VINNumber    string `json:"vinNumber"`
	Mileage      string `json:"mileage"`
	Complaint    string `json:"complaint"`
	Date         string `json:"date"`
}

// IncompleteSubmissionError 缺字段错误：逐个列出缺了哪些字段，方便客户端提示。
type IncompleteSubmissionError struct {
	MissingFields []string
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("incomplete submission: missing %s", strings.Join(e.MissingFields, ", "))
}

// Validate 一次性检查所有字段，缺失列表按字段声明顺序返回。
// 只做“非空”校验；内容是否可信由业务决定（date 就是不可信的自由文本）。
func (f Fields) Validate() *IncompleteSubmissionError {
	checks := []struct {
		name  string
		value string
	}{
		{"name", f.Name},
		{"address", f.Address},
		{"city", f.City},
		{"phoneNumber", f.PhoneNumber},
		{"vehicleMake", f.VehicleMake},
		{"vehicleModel", f.VehicleModel},
		{"vehicleYear", f.VehicleYear},
		{"vinNumber", f.VINNumber},
		{"mileage", f.Mileage},
		{"complaint", f.Complaint},
		{"date", f.Date},
	}

	var missing []string
	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return &IncompleteSubmissionError{MissingFields: missing}
	}
	return nil
}

// trimmed 返回去除首尾空白后的字段副本。
func (f Fields) trimmed() Fields {
	return Fields{
		Name:         strings.TrimSpace(f.Name),
		Address:      strings.TrimSpace(f.Address),
		City:         strings.TrimSpace(f.City),
		PhoneNumber:  strings.TrimSpace(f.PhoneNumber),
		VehicleMake:  strings.TrimSpace(f.VehicleMake),
		VehicleModel: strings.TrimSpace(f.VehicleModel),
		VehicleYear:  strings.TrimSpace(f.VehicleYear),
		VINNumber:    strings.TrimSpace(f.VINNumber),
		Mileage:      strings.TrimSpace(f.Mileage),
		Complaint:    strings.TrimSpace(f.Complaint),
		Date:         strings.TrimSpace(f.Date),
	}
}

package model

type UserRole string

const (
	Student UserRole = "student"
	Seller  UserRole = "seller"
	Admin   UserRole = "admin"
)

// User 账号由外部认证服务维护，这里只保留对账流程需要的字段
// swagger:model User
type User struct {
	UUIDBase
	Name  string   `gorm:"size:100;not null" json:"name"`
	Email string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role  UserRole `gorm:"size:20;default:'student'" json:"role"`
}

func (User) TableName() string {
	return "users"
}

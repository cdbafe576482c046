package model

import (
	"time"
)

type UserRole string

const (
	Learner UserRole = "learner"
	Mentor  UserRole = "mentor"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name     string    `gorm:"size:100;not null" json:"name"`
	Email    string    `gorm:"size:100;unique;not null" json:"email"`
	Password string    `gorm:"size:100;not null" json:"-"`
	Role     UserRole  `gorm:"size:20;default:'learner'" json:"role"`
	CampusID *uint     `gorm:"index" json:"campusId"` // 校区，campus 排行榜的范围依据
	Language string    `gorm:"size:10;default:'en'" json:"language"`
	LastSeen time.Time `json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}

package model

// User 账号体系在外部，这里只保留展示需要的昵称
type User struct {
	BaseModel
	Nickname string `gorm:"type:varchar(64);not null;default:''" json:"nickname"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

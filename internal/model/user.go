package model

// Identity 认证方提供的用户身份
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Profile 用户资料，users/{uid}，首次访问时惰性创建
type Profile struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	PhotoURL    string `json:"photoURL"`
	CreatedAt   int64  `json:"createdAt"`
}

type LeaderboardEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Points int64  `json:"points"`
}

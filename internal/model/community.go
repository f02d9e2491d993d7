package model

// Community 社区文档，存放在 communities 集合
type Community struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	CreatedAt    int64  `json:"createdAt"` // unix 毫秒
	CreatedBy    string `json:"createdBy"`
	MembersCount int64  `json:"membersCount"`
}

// CommunityMember 成员文档，存放在 communities/{id}/members，文档 id 即 uid
type CommunityMember struct {
	UserID   string `json:"userId"`
	Role     int    `json:"role"` // 0=member, 1=admin
	JoinedAt int64  `json:"joinedAt"`
}

const (
	RoleMember = 0
	RoleAdmin  = 1
)

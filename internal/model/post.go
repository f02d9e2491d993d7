package model

// Post 通用帖子，存放在 posts 集合
type Post struct {
	ID          string `json:"id"`
	CommunityID string `json:"communityId"`
	AuthorID    string `json:"authorId"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"createdAt"`
}

// FeedItem 首页动态，按 timestamp 倒序
type FeedItem struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

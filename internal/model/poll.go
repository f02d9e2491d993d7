package model

const (
	PollSingle   = "multiple"           // 单选
	PollMultiple = "multiple-selection" // 多选
)

type Poll struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	Votes     []int64  `json:"votes"`
	PollType  string   `json:"pollType"`
	CreatedBy string   `json:"createdBy"`
	CreatedAt int64    `json:"createdAt"`
}

// Ballot 每个用户对一个投票只能提交一次，文档 id 即 uid
type Ballot struct {
	UserID  string `json:"userId"`
	Options []int  `json:"options"`
	CastAt  int64  `json:"castAt"`
}

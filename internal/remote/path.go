package remote

import (
	"strconv"
	"strings"
)

// Join 拼接集合路径，例如 Join("communities", cid, "discussions")
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func CommunitiesPath() string { return "communities" }

func MembersPath(communityID string) string {
	return Join("communities", communityID, "members")
}

func DiscussionsPath(communityID string) string {
	return Join("communities", communityID, "discussions")
}

func RepliesPath(communityID, discussionID string) string {
	return Join(DiscussionsPath(communityID), discussionID, "replies")
}

func VotersPath(communityID, discussionID string) string {
	return Join(DiscussionsPath(communityID), discussionID, "voters")
}

func ReactorsPath(communityID, discussionID string) string {
	return Join(DiscussionsPath(communityID), discussionID, "reactors")
}

func BallotsPath(pollID string) string {
	return Join("polls", pollID, "ballots")
}

// Lookup 按点分路径读取嵌套字段，数组下标用数字段表示
func Lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Assign 按点分路径写入字段，缺失的中间 map 会被创建
func Assign(data map[string]any, path string, value any) error {
	segs := strings.Split(path, ".")
	if path == "" {
		return ErrInvalidPath
	}
	var cur any = data
	for i, seg := range segs {
		last := i == len(segs)-1
		switch node := cur.(type) {
		case map[string]any:
			if last {
				node[seg] = value
				return nil
			}
			next, ok := node[seg]
			if !ok || next == nil {
				next = map[string]any{}
				node[seg] = next
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return ErrInvalidPath
			}
			if last {
				node[idx] = value
				return nil
			}
			cur = node[idx]
		default:
			return ErrInvalidPath
		}
	}
	return nil
}

// Merge 将 partial 合并进 data，键可以是点分路径
func Merge(data, partial map[string]any) error {
	for k, v := range partial {
		if err := Assign(data, k, v); err != nil {
			return err
		}
	}
	return nil
}

// IncrementField 在 data 上做加法，结果小于 0 时归零；字段不存在视为 0
func IncrementField(data map[string]any, path string, delta int64) (int64, error) {
	var cur int64
	if v, ok := Lookup(data, path); ok && v != nil {
		n, ok := toFloat(v)
		if !ok {
			return 0, ErrNotNumeric
		}
		cur = int64(n)
	}
	next := cur + delta
	if next < 0 {
		next = 0
	}
	if err := Assign(data, path, next); err != nil {
		return 0, err
	}
	return next, nil
}

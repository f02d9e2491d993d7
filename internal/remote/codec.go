package remote

import (
	"encoding/json"
	"fmt"
)

// Encode 把任意结构体转换为文档数据
func Encode(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return m, nil
}

// Decode 把文档数据解码到 v，文档 id 不在 Data 中时由调用方补齐
func Decode(doc Document, v any) error {
	b, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}

// Clone 深拷贝文档数据
func Clone(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return cloneValue(data).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = cloneValue(x)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = cloneValue(x)
		}
		return s
	default:
		return v
	}
}

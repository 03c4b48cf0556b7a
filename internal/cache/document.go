package cache

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PathSeparator 分隔嵌套 section 的键，例如 database.pool.size。
const PathSeparator = "."

// Document 是数据文件解析后的内存表示：一棵以字符串为键的 YAML 映射树。
// 所有访问都使用点分路径。
type Document struct {
	root map[string]any
}

// NewDocument 返回空文档。
func NewDocument() *Document {
	return &Document{root: make(map[string]any)}
}

func newDocumentFrom(root map[string]any) *Document {
	if root == nil {
		root = make(map[string]any)
	}
	return &Document{root: root}
}

// ParseDocument 解析 YAML 内容；空内容得到空文档，顶层不是映射时返回错误。
func ParseDocument(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}

	var decoded any
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}

	switch root := decoded.(type) {
	case nil:
		return NewDocument(), nil
	case map[string]any:
		return newDocumentFrom(normalizeStringMap(root)), nil
	case map[any]any:
		return newDocumentFrom(normalizeMap(root)), nil
	default:
		return nil, fmt.Errorf("top-level node must be a mapping, got %T", decoded)
	}
}

// Get 按点分路径取值，中间节点不是 section 时视为不存在。
func (d *Document) Get(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, PathSeparator)
	node := d.root
	for i, part := range parts {
		value, ok := node[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		child, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		node = child
	}
	return nil, false
}

// Set 按点分路径写入值并按需创建中间 section；挡路的标量会被 section 替换。
// value 为 nil（或 absent 的 Value）时删除该键。
func (d *Document) Set(path string, value any) {
	if path == "" {
		return
	}
	if v, ok := value.(Value); ok {
		value = v.Raw()
	}

	parts := strings.Split(path, PathSeparator)
	node := d.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			if value == nil {
				return
			}
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}

	last := parts[len(parts)-1]
	if value == nil {
		delete(node, last)
		return
	}
	node[last] = cloneAny(value)
}

// Keys 返回排序后的键列表；deep 为 true 时包含所有中间 section 与叶子的点分路径。
func (d *Document) Keys(deep bool) []string {
	var keys []string
	collectKeys(d.root, "", deep, &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(node map[string]any, prefix string, deep bool, out *[]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + PathSeparator + key
		}
		*out = append(*out, full)
		if !deep {
			continue
		}
		if child, ok := value.(map[string]any); ok {
			collectKeys(child, full, deep, out)
		}
	}
}

// Len 返回顶层键数量。
func (d *Document) Len() int {
	return len(d.root)
}

// Map 返回整棵树的深拷贝。
func (d *Document) Map() map[string]any {
	return cloneMap(d.root)
}

// Clone 返回独立副本。
func (d *Document) Clone() *Document {
	return newDocumentFrom(cloneMap(d.root))
}

// Marshal 以两空格缩进序列化文档；空文档序列化为空内容。
func (d *Document) Marshal() ([]byte, error) {
	if len(d.root) == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cloneAny(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneMap(v)
	case map[any]any:
		return normalizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneAny(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case Value:
		return v.Raw()
	case *Document:
		return v.Map()
	default:
		return v
	}
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneAny(v)
	}
	return out
}

// normalizeMap 将非字符串键统一转为字符串，YAML 中的数字键会落入这里。
func normalizeMap(src map[any]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[fmt.Sprint(k)] = normalizeAny(v)
	}
	return out
}

func normalizeStringMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = normalizeAny(v)
	}
	return out
}

func normalizeAny(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return normalizeStringMap(v)
	case map[any]any:
		return normalizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeAny(item)
		}
		return out
	default:
		return v
	}
}

package cache

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Kind 标识 Value 当前承载的数据形态。
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBool
	KindStringList
	KindSection
)

var kindNames = map[Kind]string{
	KindAbsent:     "absent",
	KindString:     "string",
	KindInt:        "int",
	KindLong:       "long",
	KindFloat:      "float",
	KindDouble:     "double",
	KindBool:       "bool",
	KindStringList: "list",
	KindSection:    "section",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind 将 CLI/HTTP 传入的类型名解析为 Kind，section 与 absent 不可直接写入。
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "", "string", "str":
		return KindString, nil
	case "int", "integer":
		return KindInt, nil
	case "long", "int64":
		return KindLong, nil
	case "float", "float32":
		return KindFloat, nil
	case "double", "float64", "number":
		return KindDouble, nil
	case "bool", "boolean":
		return KindBool, nil
	case "list", "stringlist", "strings":
		return KindStringList, nil
	default:
		return KindAbsent, fmt.Errorf("unsupported value type %q", name)
	}
}

// Value 是缓存中单个键的值，按 Kind 区分形态；零值表示 absent。
type Value struct {
	kind Kind
	raw  any
}

// Absent 返回表示“无值”的 Value。
func Absent() Value {
	return Value{}
}

// ValueOf 将 YAML 解码结果或调用方传入的 Go 值归一化为 Value。
// 整数落在 int32 范围内归为 int，否则为 long；序列的元素统一转为字符串。
func ValueOf(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return v
	case string:
		return Value{kind: KindString, raw: v}
	case bool:
		return Value{kind: KindBool, raw: v}
	case int:
		return integerValue(int64(v))
	case int8:
		return integerValue(int64(v))
	case int16:
		return integerValue(int64(v))
	case int32:
		return integerValue(int64(v))
	case int64:
		return integerValue(v)
	case uint:
		return unsignedValue(uint64(v))
	case uint8:
		return integerValue(int64(v))
	case uint16:
		return integerValue(int64(v))
	case uint32:
		return integerValue(int64(v))
	case uint64:
		return unsignedValue(v)
	case float32:
		return Value{kind: KindFloat, raw: v}
	case float64:
		return Value{kind: KindDouble, raw: v}
	case []string:
		return Value{kind: KindStringList, raw: append([]string(nil), v...)}
	case []any:
		return Value{kind: KindStringList, raw: toStringList(v)}
	case map[string]any:
		return Value{kind: KindSection, raw: cloneMap(v)}
	case map[any]any:
		return Value{kind: KindSection, raw: normalizeMap(v)}
	case *Document:
		if v == nil {
			return Value{}
		}
		return Value{kind: KindSection, raw: v.Map()}
	default:
		if s, err := cast.ToStringE(v); err == nil {
			return Value{kind: KindString, raw: s}
		}
		return Value{kind: KindString, raw: fmt.Sprint(v)}
	}
}

func integerValue(v int64) Value {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return Value{kind: KindInt, raw: v}
	}
	return Value{kind: KindLong, raw: v}
}

func unsignedValue(v uint64) Value {
	if v > math.MaxInt64 {
		return Value{kind: KindDouble, raw: float64(v)}
	}
	return integerValue(int64(v))
}

func toStringList(items []any) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if s, err := cast.ToStringE(item); err == nil {
			result = append(result, s)
			continue
		}
		result = append(result, fmt.Sprint(item))
	}
	return result
}

// Kind 返回值的形态。
func (v Value) Kind() Kind {
	return v.kind
}

// IsAbsent 表示该键在文档中不存在。
func (v Value) IsAbsent() bool {
	return v.kind == KindAbsent
}

// Raw 返回可直接写回 YAML 文档的值；section 与 list 返回副本。
func (v Value) Raw() any {
	switch v.kind {
	case KindStringList:
		return append([]string(nil), v.raw.([]string)...)
	case KindSection:
		return cloneMap(v.raw.(map[string]any))
	case KindInt, KindLong:
		return v.raw.(int64)
	default:
		return v.raw
	}
}

// String 返回值的文本形式：标量直接渲染，list 以逗号连接，section 渲染为排序后的 key=value。
func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return ""
	case KindStringList:
		return strings.Join(v.raw.([]string), ",")
	case KindSection:
		section := v.raw.(map[string]any)
		keys := make([]string, 0, len(section))
		for k := range section {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, section[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return cast.ToString(v.raw)
	}
}

// AsString 收窄为字符串，数值不会被隐式渲染。
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString:
		return v.raw.(string), nil
	case KindAbsent:
		return "", notFound()
	default:
		return "", mismatch(KindString, v.kind)
	}
}

// AsInt 收窄为 int，long 值一律拒绝。
func (v Value) AsInt() (int, error) {
	switch v.kind {
	case KindInt:
		return int(v.raw.(int64)), nil
	case KindAbsent:
		return 0, notFound()
	default:
		return 0, mismatch(KindInt, v.kind)
	}
}

// AsLong 收窄为 int64，接受 int 与 long。
func (v Value) AsLong() (int64, error) {
	switch v.kind {
	case KindInt, KindLong:
		return v.raw.(int64), nil
	case KindAbsent:
		return 0, notFound()
	default:
		return 0, mismatch(KindLong, v.kind)
	}
}

// AsFloat 将任意数值收窄为 float32。
func (v Value) AsFloat() (float32, error) {
	switch v.kind {
	case KindFloat:
		return v.raw.(float32), nil
	case KindDouble:
		return float32(v.raw.(float64)), nil
	case KindInt, KindLong:
		return float32(v.raw.(int64)), nil
	case KindAbsent:
		return 0, notFound()
	default:
		return 0, mismatch(KindFloat, v.kind)
	}
}

// AsDouble 将任意数值收窄为 float64。
func (v Value) AsDouble() (float64, error) {
	switch v.kind {
	case KindDouble:
		return v.raw.(float64), nil
	case KindFloat:
		return float64(v.raw.(float32)), nil
	case KindInt, KindLong:
		return float64(v.raw.(int64)), nil
	case KindAbsent:
		return 0, notFound()
	default:
		return 0, mismatch(KindDouble, v.kind)
	}
}

// AsBool 收窄为布尔值。
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.raw.(bool), nil
	case KindAbsent:
		return false, notFound()
	default:
		return false, mismatch(KindBool, v.kind)
	}
}

// AsStringList 收窄为字符串列表，返回副本。
func (v Value) AsStringList() ([]string, error) {
	switch v.kind {
	case KindStringList:
		return append([]string(nil), v.raw.([]string)...), nil
	case KindAbsent:
		return nil, notFound()
	default:
		return nil, mismatch(KindStringList, v.kind)
	}
}

// AsSection 收窄为嵌套 section，返回独立的 Document 副本。
func (v Value) AsSection() (*Document, error) {
	switch v.kind {
	case KindSection:
		return newDocumentFrom(cloneMap(v.raw.(map[string]any))), nil
	case KindAbsent:
		return nil, notFound()
	default:
		return nil, mismatch(KindSection, v.kind)
	}
}

// ParseValue 按 Kind 解析文本形式的值，list 以逗号分隔。
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindString:
		return Value{kind: KindString, raw: text}, nil
	case KindInt:
		n, err := cast.ToInt64E(strings.TrimSpace(text))
		if err != nil {
			return Value{}, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return Value{}, fmt.Errorf("value %d out of int range", n)
		}
		return Value{kind: KindInt, raw: n}, nil
	case KindLong:
		n, err := cast.ToInt64E(strings.TrimSpace(text))
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindLong, raw: n}, nil
	case KindFloat:
		f, err := cast.ToFloat32E(strings.TrimSpace(text))
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindFloat, raw: f}, nil
	case KindDouble:
		f, err := cast.ToFloat64E(strings.TrimSpace(text))
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindDouble, raw: f}, nil
	case KindBool:
		b, err := cast.ToBoolE(strings.TrimSpace(text))
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindBool, raw: b}, nil
	case KindStringList:
		if strings.TrimSpace(text) == "" {
			return Value{kind: KindStringList, raw: []string{}}, nil
		}
		parts := strings.Split(text, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return Value{kind: KindStringList, raw: parts}, nil
	default:
		return Value{}, fmt.Errorf("cannot parse value of kind %s", kind)
	}
}

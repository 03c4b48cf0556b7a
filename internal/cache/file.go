package cache

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/cfg-helper/cfg-helper/internal/logging"
)

const dataFileMode = 0o644

// File 缓存单个数据文件：values 保存每个键最近一次读取的值，
// lastReadAt 记录读取时的文件修改时间，二者键集合始终一致。
// 读取时若记录时间与当前修改时间不相等，则从已解析文档重新取值。
// pending 记录 Set 之后尚未落盘的键，savedAt 是本实例最近一次写盘后的修改时间。
type File struct {
	mu sync.Mutex

	env           *Env
	dir           *Directory
	name          string
	qualifiedName string
	path          string

	doc        *Document
	values     map[string]Value
	lastReadAt map[string]time.Time
	pending    map[string]struct{}
	savedAt    time.Time
	loaded     bool
}

// NewFile 构造目录下的数据文件缓存；fileName 可带或不带扩展名。
// 文件不存在时创建空文件；路径是目录时返回 ErrInvalidTarget；
// 读取或解析失败只记录日志，缓存保持为空。
func NewFile(fileName string, dir *Directory) (*File, error) {
	env := dir.env
	name := strings.TrimSuffix(fileName, env.Extension)
	f := &File{
		env:           env,
		dir:           dir,
		name:          name,
		qualifiedName: dir.Name() + "/" + name + env.Extension,
		path:          filepath.Join(dir.Path(), name+env.Extension),
		doc:           NewDocument(),
		values:        make(map[string]Value),
		lastReadAt:    make(map[string]time.Time),
		pending:       make(map[string]struct{}),
	}

	if !dir.Exists() {
		_ = dir.Create()
	}

	info, err := env.Fs.Stat(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		f.loaded = f.createEmpty() == nil
		return f, nil
	case err != nil:
		env.error(f.fields("load"), ioError("stat", f.path, err), "data file stat failed")
		return f, nil
	case !info.Mode().IsRegular():
		return nil, invalidTarget(f.path, "file")
	}

	f.loaded = f.load() == nil
	return f, nil
}

func (f *File) fields(action string) logrus.Fields {
	return logging.FileFields(action, f.qualifiedName, f.path)
}

func (f *File) createEmpty() error {
	if err := afero.WriteFile(f.env.Fs, f.path, nil, dataFileMode); err != nil {
		wrapped := ioError("create", f.path, err)
		f.env.error(f.fields("create"), wrapped, "data file create failed")
		return wrapped
	}
	f.env.info(f.fields("create"), "data file created")
	return nil
}

// load 从磁盘解析文档，并以当前修改时间填充所有键（含中间 section）。
func (f *File) load() error {
	data, err := afero.ReadFile(f.env.Fs, f.path)
	if err != nil {
		wrapped := ioError("read", f.path, err)
		f.env.error(f.fields("load"), wrapped, "data file read failed")
		return wrapped
	}
	doc, err := ParseDocument(data)
	if err != nil {
		wrapped := parseError(f.path, err)
		f.env.error(f.fields("load"), wrapped, "data file parse failed")
		return wrapped
	}

	mod := f.modTime()
	f.doc = doc
	f.values = make(map[string]Value)
	f.lastReadAt = make(map[string]time.Time)
	f.pending = make(map[string]struct{})
	keys := doc.Keys(true)
	for _, key := range keys {
		raw, _ := doc.Get(key)
		f.values[key] = ValueOf(raw)
		f.lastReadAt[key] = mod
	}

	fields := f.fields("load")
	fields["keys"] = len(keys)
	f.env.info(fields, "data file loaded")
	return nil
}

// modTime 返回数据文件当前修改时间，文件缺失时为零值。
func (f *File) modTime() time.Time {
	info, err := f.env.Fs.Stat(f.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (f *File) stale(key string, mod time.Time) bool {
	at, ok := f.lastReadAt[key]
	return !ok || !at.Equal(mod)
}

func (f *File) fetch(key string) Value {
	mod := f.modTime()
	if !f.stale(key, mod) {
		return f.values[key]
	}
	raw, _ := f.doc.Get(key)
	value := ValueOf(raw)
	f.values[key] = value
	f.lastReadAt[key] = mod
	return value
}

// Get 返回键的值；键过期时先从文档重新取值并更新读取时间。
func (f *File) Get(key string) Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetch(key)
}

// GetString 以字符串读取键，数值不会被转换为字符串。
// 键不存在返回 ErrKeyNotFound，类型不符返回 ErrTypeMismatch。
func (f *File) GetString(key string) (string, error) {
	v, err := f.Get(key).AsString()
	return v, withKey(err, key)
}

// GetInt 以 int 读取键，超出 int32 范围的 long 值返回 ErrTypeMismatch。
func (f *File) GetInt(key string) (int, error) {
	v, err := f.Get(key).AsInt()
	return v, withKey(err, key)
}

// GetLong 以 int64 读取键。
func (f *File) GetLong(key string) (int64, error) {
	v, err := f.Get(key).AsLong()
	return v, withKey(err, key)
}

// GetFloat 以 float32 读取键，任意数值类型均可。
func (f *File) GetFloat(key string) (float32, error) {
	v, err := f.Get(key).AsFloat()
	return v, withKey(err, key)
}

// GetDouble 以 float64 读取键，任意数值类型均可。
func (f *File) GetDouble(key string) (float64, error) {
	v, err := f.Get(key).AsDouble()
	return v, withKey(err, key)
}

// GetBool 以布尔值读取键。
func (f *File) GetBool(key string) (bool, error) {
	v, err := f.Get(key).AsBool()
	return v, withKey(err, key)
}

// GetStringList 读取列表，元素按字符串渲染。
func (f *File) GetStringList(key string) ([]string, error) {
	v, err := f.Get(key).AsStringList()
	return v, withKey(err, key)
}

// GetSection 返回 section 的独立副本，修改副本不影响缓存。
func (f *File) GetSection(key string) (*Document, error) {
	v, err := f.Get(key).AsSection()
	return v, withKey(err, key)
}

// IsModified 报告键是否过期（从未读取也算过期）。
func (f *File) IsModified(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale(key, f.modTime())
}

// IsModifiedAny 报告给定键中是否有任意一个过期。
func (f *File) IsModifiedAny(keys ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	mod := f.modTime()
	for _, key := range keys {
		if f.stale(key, mod) {
			return true
		}
	}
	return false
}

// IsModifiedAll 报告已缓存的键中是否有任意一个过期。
func (f *File) IsModifiedAll() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	mod := f.modTime()
	for key := range f.lastReadAt {
		if f.stale(key, mod) {
			return true
		}
	}
	return false
}

// Set 写入文档与缓存，不落盘。value 可以是 Value 或任意 Go 值，nil 表示删除该键。
func (f *File) Set(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(key, value)
}

// SetAndSave 等价于 Set 之后立即 Save。
func (f *File) SetAndSave(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(key, value)
	return f.save()
}

func (f *File) set(key string, value any) {
	v := ValueOf(value)
	f.evictRelated(key)
	f.doc.Set(key, v.Raw())
	f.values[key] = v
	f.lastReadAt[key] = f.modTime()
	f.pending[key] = struct{}{}
}

// evictRelated 移除 key 的祖先与后代缓存，下次读取时从文档重新取值。
func (f *File) evictRelated(key string) {
	prefix := key + PathSeparator
	for cached := range f.values {
		if strings.HasPrefix(cached, prefix) || strings.HasPrefix(key, cached+PathSeparator) {
			delete(f.values, cached)
			delete(f.lastReadAt, cached)
			delete(f.pending, cached)
		}
	}
}

// Save 将缓存的值合并回文档并覆盖写入数据文件，失败时记录一次日志并返回错误。
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save()
}

func (f *File) save() error {
	keys := make([]string, 0, len(f.values))
	for key := range f.values {
		keys = append(keys, key)
	}
	// 排序保证 section 先于其子键合并，子键覆盖 section 快照中的旧值。
	sort.Strings(keys)
	for _, key := range keys {
		value := f.values[key]
		if value.IsAbsent() {
			// 只有显式 Set(nil) 的键需要从文档删除，读到的缺失值保持原样。
			if _, ok := f.pending[key]; ok {
				f.doc.Set(key, nil)
			}
			continue
		}
		f.doc.Set(key, value.Raw())
	}

	data, err := f.doc.Marshal()
	if err != nil {
		wrapped := parseError(f.path, err)
		f.env.error(f.fields("save"), wrapped, "data file encode failed")
		return wrapped
	}
	if err := f.env.Fs.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		wrapped := ioError("mkdir", f.path, err)
		f.env.error(f.fields("save"), wrapped, "data file save failed")
		return wrapped
	}
	if err := afero.WriteFile(f.env.Fs, f.path, data, dataFileMode); err != nil {
		wrapped := ioError("write", f.path, err)
		f.env.error(f.fields("save"), wrapped, "data file save failed")
		return wrapped
	}
	f.savedAt = f.modTime()
	f.pending = make(map[string]struct{})
	return nil
}

// Reload 仅重新解析磁盘文档，不触碰 values/lastReadAt；失败时保留原文档。
// 尚未保存的 Set 会重新写入新文档，因此 Reload 不会丢弃未落盘的修改。
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := afero.ReadFile(f.env.Fs, f.path)
	if err != nil {
		wrapped := ioError("read", f.path, err)
		f.env.error(f.fields("reload"), wrapped, "data file reload failed")
		f.loaded = false
		return wrapped
	}
	doc, err := ParseDocument(data)
	if err != nil {
		wrapped := parseError(f.path, err)
		f.env.error(f.fields("reload"), wrapped, "data file reload failed")
		f.loaded = false
		return wrapped
	}
	keys := make([]string, 0, len(f.pending))
	for key := range f.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		doc.Set(key, f.values[key].Raw())
	}
	f.doc = doc
	f.loaded = true
	fields := f.fields("reload")
	fields["pending"] = len(keys)
	f.env.info(fields, "data file reloaded")
	return nil
}

// Refresh 对所有已缓存且过期的键重新取值，返回被刷新的键。
func (f *File) Refresh() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	mod := f.modTime()
	var refreshed []string
	for key := range f.lastReadAt {
		if f.stale(key, mod) {
			refreshed = append(refreshed, key)
		}
	}
	sort.Strings(refreshed)
	for _, key := range refreshed {
		f.fetch(key)
	}
	return refreshed
}

// Resync 以当前文档重新取回所有已缓存的键并记录当前修改时间，返回值发生变化的键。
// 文件监听在 Reload 之后调用，覆盖修改与重新解析之间被读取并打上新时间戳的键。
func (f *File) Resync() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	mod := f.modTime()
	var changed []string
	for key, old := range f.values {
		raw, _ := f.doc.Get(key)
		value := ValueOf(raw)
		if value.Kind() != old.Kind() || !reflect.DeepEqual(value.Raw(), old.Raw()) {
			changed = append(changed, key)
		}
		f.values[key] = value
		f.lastReadAt[key] = mod
	}
	sort.Strings(changed)
	return changed
}

// Delete 删除数据文件并清空缓存，实例仍可继续使用。
func (f *File) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.env.Fs.Remove(f.path); err != nil {
		wrapped := ioError("delete", f.path, err)
		f.env.error(f.fields("delete"), wrapped, "data file delete failed")
		return wrapped
	}
	f.doc = NewDocument()
	f.values = make(map[string]Value)
	f.lastReadAt = make(map[string]time.Time)
	f.pending = make(map[string]struct{})
	f.savedAt = time.Time{}
	f.loaded = false
	f.env.info(f.fields("delete"), "data file deleted")
	return nil
}

// Close 保存并记录结果，适合 defer 调用。
func (f *File) Close() error {
	if err := f.Save(); err != nil {
		f.env.error(f.fields("close"), err, "data file close failed")
		return err
	}
	f.env.info(f.fields("close"), "data file saved")
	return nil
}

// Keys 返回已缓存的键，按字典序排列。
func (f *File) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.values))
	for key := range f.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Values 返回缓存快照。
func (f *File) Values() map[string]Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Value, len(f.values))
	for key, value := range f.values {
		out[key] = value
	}
	return out
}

// Exists 报告数据文件当前是否存在。
func (f *File) Exists() bool {
	ok, err := afero.Exists(f.env.Fs, f.path)
	return err == nil && ok
}

// Pending 返回已 Set 但尚未保存的键，按字典序排列。
func (f *File) Pending() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.pending))
	for key := range f.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ChangedExternally 报告当前文件是否不是本实例最近一次 Save 写出的版本。
// 修改时间等于 savedAt 时视为自身写入，文件监听据此跳过自己触发的事件。
func (f *File) ChangedExternally() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.savedAt.IsZero() || !f.modTime().Equal(f.savedAt)
}

// Loaded 报告最近一次加载是否成功。
func (f *File) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *File) Name() string          { return f.name }
func (f *File) QualifiedName() string { return f.qualifiedName }
func (f *File) Path() string          { return f.path }
func (f *File) Directory() *Directory { return f.dir }

// ModTime 返回数据文件当前修改时间，文件缺失时为零值。
func (f *File) ModTime() time.Time {
	return f.modTime()
}

// ReadAt 返回键最近一次读取时记录的修改时间。
func (f *File) ReadAt(key string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.lastReadAt[key]
	return at, ok
}

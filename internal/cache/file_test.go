package cache

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLoadsAllKeys(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	writeData(t, fs, filepath.Join(dir.Path(), "config.yml"), sampleYAML, t0)

	f, err := NewFile("config.yml", dir)
	require.NoError(t, err)

	assert.True(t, f.Loaded())
	assert.Equal(t, "config", f.Name())
	assert.Equal(t, "cfg/config.yml", f.QualifiedName())
	assert.Equal(t, []string{"motd", "ratio", "server", "server.host", "server.port", "server.tags"}, f.Keys())
	for _, key := range f.Keys() {
		at, ok := f.ReadAt(key)
		require.True(t, ok)
		assert.True(t, at.Equal(t0), "key %s", key)
		assert.False(t, f.IsModified(key))
	}

	port, err := f.GetInt("server.port")
	require.NoError(t, err)
	assert.Equal(t, 25565, port)

	tags, err := f.GetStringList("server.tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)

	ratio, err := f.GetFloat("ratio")
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), ratio)

	section, err := f.GetSection("server")
	require.NoError(t, err)
	host, _ := section.Get("host")
	assert.Equal(t, "localhost", host)
}

func TestNewFileCreatesMissingFile(t *testing.T) {
	env, fs, hook := newTestEnv(t)
	dir := openDir(t, env, "cfg")

	f, err := NewFile("fresh", dir)
	require.NoError(t, err)

	ok, err := afero.Exists(fs, filepath.Join(dir.Path(), "fresh.yml"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.Loaded())
	assert.Empty(t, f.Keys())
	assert.True(t, hasEntry(hook, logrus.InfoLevel, "data file created"))
}

func TestNewFileRecreatesMissingDirectory(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	require.NoError(t, fs.RemoveAll(dir.Path()))

	f, err := NewFile("config", dir)
	require.NoError(t, err)
	assert.True(t, dir.Exists())
	assert.True(t, f.Exists())
}

func TestNewFileRejectsDirectoryTarget(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	require.NoError(t, fs.MkdirAll(filepath.Join(dir.Path(), "nested.yml"), 0o755))

	_, err := NewFile("nested", dir)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestNewFileParseFailureLeavesCacheEmpty(t *testing.T) {
	env, fs, hook := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	writeData(t, fs, filepath.Join(dir.Path(), "broken.yml"), "key: [unterminated", t0)

	f, err := NewFile("broken", dir)
	require.NoError(t, err)
	assert.False(t, f.Loaded())
	assert.Empty(t, f.Keys())
	assert.True(t, hasEntry(hook, logrus.ErrorLevel, "data file parse failed"))

	_, err = f.GetString("key")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestGetRecordsCurrentModTime(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)

	touch(t, fs, path, t1)
	assert.True(t, f.IsModified("a"))
	assert.True(t, f.IsModifiedAll())

	f.Get("a")
	at, ok := f.ReadAt("a")
	require.True(t, ok)
	assert.True(t, at.Equal(f.ModTime()))
	assert.False(t, f.IsModified("a"))
}

func TestBackwardsModTimeIsStale(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\n", t2)

	f, err := NewFile("config", dir)
	require.NoError(t, err)
	require.False(t, f.IsModified("a"))

	touch(t, fs, path, t0)
	assert.True(t, f.IsModified("a"))

	n, err := f.GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	at, _ := f.ReadAt("a")
	assert.True(t, at.Equal(t0))
}

func TestUnreadKeyIsStale(t *testing.T) {
	env, _, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	f, err := NewFile("config", dir)
	require.NoError(t, err)

	assert.True(t, f.IsModified("never.read"))
	assert.True(t, f.IsModifiedAny("never.read"))
	assert.False(t, f.IsModifiedAny())

	// 缺失键也会被缓存为 absent
	assert.True(t, f.Get("never.read").IsAbsent())
	assert.False(t, f.IsModified("never.read"))
}

func TestTypedGetterErrors(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	writeData(t, fs, filepath.Join(dir.Path(), "config.yml"), "name: steve\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)

	_, err = f.GetInt("name")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "want int, got string")

	_, err = f.GetBool("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	env, _, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	f, err := NewFile("config", dir)
	require.NoError(t, err)

	require.NoError(t, f.SetAndSave("a.b", 5))
	require.NoError(t, f.SetAndSave("list", []string{"x", "y"}))

	reopened, err := NewFile("config", openDir(t, env, "cfg"))
	require.NoError(t, err)

	n, err := reopened.GetInt("a.b")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	list, err := reopened.GetStringList("list")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, list)
}

func TestSetWithoutSaveIsInvisibleToOtherInstances(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	writeData(t, fs, filepath.Join(dir.Path(), "config.yml"), "a:\n  b: 1\n", t0)

	first, err := NewFile("config", dir)
	require.NoError(t, err)
	second, err := NewFile("config", dir)
	require.NoError(t, err)

	first.Set("a.b", 5)

	n, err := first.GetInt("a.b")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = second.GetInt("a.b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSetEvictsRelatedKeys(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	writeData(t, fs, filepath.Join(dir.Path(), "config.yml"), "a:\n  b: 1\n  c: 2\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "a.b", "a.c"}, f.Keys())

	f.Set("a.b", 5)
	assert.Equal(t, []string{"a.b", "a.c"}, f.Keys())

	section, err := f.GetSection("a")
	require.NoError(t, err)
	got, _ := section.Get("b")
	assert.Equal(t, int64(5), got)

	f.Set("a", map[string]any{"x": "y"})
	assert.Equal(t, []string{"a"}, f.Keys())
	assert.True(t, f.Get("a.b").IsAbsent())

	s, err := f.GetString("a.x")
	require.NoError(t, err)
	assert.Equal(t, "y", s)
}

func TestSetNilRemovesKey(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\nb: 2\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)
	require.NoError(t, f.SetAndSave("a", nil))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "b: 2\n", string(data))
}

func TestReloadPicksUpExternalEdits(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)

	writeData(t, fs, path, "a: 2\nb: true\n", t1)
	require.NoError(t, f.Reload())

	// Reload 不触碰缓存，过期键在读取时才刷新
	assert.True(t, f.IsModified("a"))
	n, err := f.GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := f.GetBool("b")
	require.NoError(t, err)
	assert.True(t, b)
}

func TestReloadKeepsPendingEdits(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\nold: x\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)
	f.Set("b", 2)
	f.Set("old", nil)
	assert.Equal(t, []string{"b", "old"}, f.Pending())

	writeData(t, fs, path, "a: 3\nold: y\n", t1)
	require.NoError(t, f.Reload())
	assert.Equal(t, []string{"a"}, f.Resync())

	b, err := f.GetInt("b")
	require.NoError(t, err)
	assert.Equal(t, 2, b)
	assert.True(t, f.Get("old").IsAbsent())

	require.NoError(t, f.Save())
	assert.Empty(t, f.Pending())
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "a: 3\nb: 2\n", string(data))
}

func TestChangedExternally(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)
	// 从未保存过，任何版本都视为外部写入
	assert.True(t, f.ChangedExternally())

	require.NoError(t, f.SetAndSave("a", 2))
	assert.False(t, f.ChangedExternally())

	touch(t, fs, path, t2)
	assert.True(t, f.ChangedExternally())
}

func TestReloadFailureKeepsDocument(t *testing.T) {
	env, fs, hook := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)

	writeData(t, fs, path, "a: [", t1)
	err = f.Reload()
	assert.ErrorIs(t, err, ErrParse)
	assert.False(t, f.Loaded())
	assert.True(t, hasEntry(hook, logrus.ErrorLevel, "data file reload failed"))

	n, err := f.GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRefreshRefetchesStaleKeys(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\nb: 2\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)

	writeData(t, fs, path, "a: 10\nb: 20\n", t1)
	require.NoError(t, f.Reload())
	assert.Equal(t, []string{"a", "b"}, f.Refresh())
	assert.Empty(t, f.Refresh())

	values := f.Values()
	n, err := values["b"].AsInt()
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestDeleteThenReconstruct(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)
	require.NoError(t, f.Delete())

	assert.False(t, f.Exists())
	assert.Empty(t, f.Keys())
	assert.True(t, f.ModTime().IsZero())

	err = f.Delete()
	assert.ErrorIs(t, err, ErrIO)

	again, err := NewFile("config", dir)
	require.NoError(t, err)
	assert.True(t, again.Exists())
	assert.Empty(t, again.Keys())

	// 删除后的实例仍可使用，保存即重新生成文件
	require.NoError(t, f.SetAndSave("b", "x"))
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "b: x\n", string(data))
}

func TestSaveFailureIsReported(t *testing.T) {
	env, fs, hook := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	f, err := NewFile("config", dir)
	require.NoError(t, err)

	f.Set("a", 1)
	env.Fs = afero.NewReadOnlyFs(fs)

	err = f.Close()
	assert.ErrorIs(t, err, ErrIO)
	assert.True(t, hasEntry(hook, logrus.ErrorLevel, "data file save failed"))
	assert.True(t, hasEntry(hook, logrus.ErrorLevel, "data file close failed"))
}

func TestCloseSavesPendingValues(t *testing.T) {
	env, fs, hook := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	f, err := NewFile("config", dir)
	require.NoError(t, err)

	f.Set("server.port", 25565)
	f.Set("server.host", "localhost")
	require.NoError(t, f.Close())

	data, err := afero.ReadFile(fs, f.Path())
	require.NoError(t, err)
	assert.Equal(t, "server:\n  host: localhost\n  port: 25565\n", string(data))
	assert.True(t, hasEntry(hook, logrus.InfoLevel, "data file saved"))
}

func TestResyncOverridesFreshStamps(t *testing.T) {
	env, fs, _ := newTestEnv(t)
	dir := openDir(t, env, "cfg")
	path := filepath.Join(dir.Path(), "config.yml")
	writeData(t, fs, path, "a: 1\nb: 2\n", t0)

	f, err := NewFile("config", dir)
	require.NoError(t, err)

	writeData(t, fs, path, "a: 5\nb: 2\nc: x\n", t1)
	// 重新解析前读取：旧文档的值被打上新时间戳
	f.Get("a")
	f.Get("c")
	require.False(t, f.IsModified("a"))

	require.NoError(t, f.Reload())
	assert.Equal(t, []string{"b"}, f.Refresh())
	assert.Equal(t, []string{"a", "c"}, f.Resync())

	n, err := f.GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	s, err := f.GetString("c")
	require.NoError(t, err)
	assert.Equal(t, "x", s)
}

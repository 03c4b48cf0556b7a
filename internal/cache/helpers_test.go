package cache

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const dataRoot = "/srv/data"

var (
	t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t0.Add(2 * time.Minute)
)

func newTestEnv(t *testing.T) (*Env, afero.Fs, *test.Hook) {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewEnv(fs, logger, ".yml"), fs, hook
}

// writeData 写入数据文件并固定修改时间，便于断言过期判定。
func writeData(t *testing.T, fs afero.Fs, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(path, mod, mod))
}

func touch(t *testing.T, fs afero.Fs, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, fs.Chtimes(path, mod, mod))
}

func openDir(t *testing.T, env *Env, name string) *Directory {
	t.Helper()
	dir, err := OpenDirectory(env, dataRoot, name)
	require.NoError(t, err)
	return dir
}

func hasEntry(hook *test.Hook, level logrus.Level, msg string) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Level == level && entry.Message == msg {
			return true
		}
	}
	return false
}

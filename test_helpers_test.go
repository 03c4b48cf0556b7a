package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// moduleRoot 是 go.mod 所在目录，fixture 路径都相对于它。
var moduleRoot = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if filepath.Dir(dir) == dir {
			return ""
		}
	}
}()

func fixturePath(t *testing.T, parts ...string) string {
	t.Helper()
	if moduleRoot == "" {
		t.Fatal("无法定位 go.mod 所在目录")
	}
	return filepath.Join(append([]string{moduleRoot}, parts...)...)
}

// configFixture 返回 internal/config/testdata 下的配置文件。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	return fixturePath(t, "internal", "config", "testdata", name)
}

// dataFixture 返回 testdata 下的只读数据目录。
func dataFixture(t *testing.T, name string) string {
	t.Helper()
	return fixturePath(t, "testdata", name)
}

// dataFolderConfig 写入一份临时配置，把 DataFolder 指向给定目录。
func dataFolderConfig(t *testing.T, dataFolder string) string {
	t.Helper()
	return writeConfigFile(t, fmt.Sprintf("DataFolder: %s\nDirectory:\n  - Name: lang\n", dataFolder))
}

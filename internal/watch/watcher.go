// Package watch 监听数据目录，外部修改数据文件后重新解析文档并同步缓存。
package watch

import (
	"context"
	"errors"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/cfg-helper/cfg-helper/internal/helper"
	"github.com/cfg-helper/cfg-helper/internal/logging"
)

// Watcher 将 fsnotify 事件映射为 File.Reload + File.Resync；File 自身 Save 触发的事件会被跳过。
type Watcher struct {
	helper    *helper.Helper
	logger    logrus.FieldLogger
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	done      chan struct{}
}

// New 创建 Watcher，debounce 为 0 时每个事件在下一次调度时立即处理。
func New(h *helper.Helper, logger logrus.FieldLogger, debounce time.Duration) (*Watcher, error) {
	if h == nil {
		return nil, errors.New("helper is required")
	}
	if logger == nil {
		logger = h.Env().Logger
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		helper:    h,
		logger:    logger,
		fsWatcher: fsWatcher,
		done:      make(chan struct{}),
	}
	w.debouncer = NewDebouncer(debounce, w.reload)
	return w, nil
}

// Start 监听所有已登记目录，并在后台处理事件直到 ctx 结束或 Stop 被调用。
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.helper.DirectoryList() {
		if err := w.fsWatcher.Add(dir.Path()); err != nil {
			return err
		}
		w.logger.WithFields(logging.DirectoryFields("watch", dir.Name(), dir.Path())).Debug("watching data directory")
	}
	go w.processEvents(ctx)
	return nil
}

// Done 在事件循环退出后关闭。
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Stop 处理剩余事件并关闭底层 watcher。
func (w *Watcher) Stop() error {
	w.debouncer.Flush()
	return w.fsWatcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithField("action", "watch").WithError(err).Error("file watcher error")
		}
	}
}

// handleEvent 只关心数据文件的写入与创建事件。
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if _, _, ok := w.helper.Locate(event.Name); !ok {
		return
	}
	w.debouncer.Add(event.Name)
}

func (w *Watcher) reload(paths []string) {
	for _, path := range paths {
		dir, name, ok := w.helper.Locate(path)
		if !ok {
			continue
		}
		file, err := dir.GetOrCreate(name)
		if err != nil {
			w.logger.WithFields(logging.FileFields("watch_reload", dir.Name()+"/"+name, path)).
				WithError(err).Error("data file reload skipped")
			continue
		}
		if !file.ChangedExternally() {
			w.logger.WithFields(logging.FileFields("watch_reload", file.QualifiedName(), file.Path())).
				Debug("skipping data file written by this process")
			continue
		}
		if err := file.Reload(); err != nil {
			continue
		}
		changed := file.Resync()
		fields := logging.FileFields("watch_reload", file.QualifiedName(), file.Path())
		fields["changed"] = len(changed)
		w.logger.WithFields(fields).Info("data file reloaded after external change")
	}
}

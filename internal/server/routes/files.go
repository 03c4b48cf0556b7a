package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cast"

	"github.com/cfg-helper/cfg-helper/internal/cache"
	"github.com/cfg-helper/cfg-helper/internal/helper"
	"github.com/cfg-helper/cfg-helper/internal/server"
)

// RegisterFileRoutes 暴露 /-/directories 与 /-/files 管理接口，
// 用于查看缓存内容、写入键值以及触发保存/重新加载/删除。
func RegisterFileRoutes(app *fiber.App, h *helper.Helper) {
	if app == nil || h == nil {
		return
	}

	app.Get("/-/directories", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"directories": encodeDirectories(h.DirectoryList()),
		})
	})

	app.Get("/-/files/:dir/:file", func(c fiber.Ctx) error {
		file, ok, err := lookupFile(c, h, false)
		if !ok {
			return err
		}
		return c.JSON(encodeFile(file))
	})

	app.Delete("/-/files/:dir/:file", func(c fiber.Ctx) error {
		file, ok, err := lookupFile(c, h, false)
		if !ok {
			return err
		}
		if err := file.Delete(); err != nil {
			return server.RenderError(c, fiber.StatusInternalServerError, "delete_failed")
		}
		return c.JSON(fiber.Map{"file": file.QualifiedName(), "deleted": true})
	})

	app.Post("/-/files/:dir/:file/save", func(c fiber.Ctx) error {
		file, ok, err := lookupFile(c, h, true)
		if !ok {
			return err
		}
		if err := file.Save(); err != nil {
			return server.RenderError(c, fiber.StatusInternalServerError, "save_failed")
		}
		return c.JSON(fiber.Map{"file": file.QualifiedName(), "saved": true})
	})

	app.Post("/-/files/:dir/:file/reload", func(c fiber.Ctx) error {
		file, ok, err := lookupFile(c, h, false)
		if !ok {
			return err
		}
		if err := file.Reload(); err != nil {
			return server.RenderError(c, fiber.StatusInternalServerError, "reload_failed")
		}
		changed := file.Resync()
		if changed == nil {
			changed = []string{}
		}
		return c.JSON(fiber.Map{"file": file.QualifiedName(), "changed": changed})
	})

	app.Get("/-/files/:dir/:file/keys/:key", func(c fiber.Ctx) error {
		file, ok, err := lookupFile(c, h, false)
		if !ok {
			return err
		}
		key := c.Params("key")
		modified := file.IsModified(key)
		value := file.Get(key)
		if value.IsAbsent() {
			return server.RenderError(c, fiber.StatusNotFound, "key_not_found")
		}
		return c.JSON(keyPayload{
			Key:      key,
			Kind:     value.Kind().String(),
			Value:    value.Raw(),
			Modified: modified,
		})
	})

	app.Put("/-/files/:dir/:file/keys/:key", func(c fiber.Ctx) error {
		kind, err := cache.ParseKind(c.Query("type", "string"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_value")
		}
		value, err := cache.ParseValue(kind, strings.TrimRight(string(c.Body()), "\r\n"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_value")
		}
		persist, err := cast.ToBoolE(c.Query("persist", "false"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_value")
		}

		file, ok, lookupErr := lookupFile(c, h, true)
		if !ok {
			return lookupErr
		}
		key := c.Params("key")
		if persist {
			if err := file.SetAndSave(key, value); err != nil {
				return server.RenderError(c, fiber.StatusInternalServerError, "save_failed")
			}
		} else {
			file.Set(key, value)
		}
		return c.JSON(fiber.Map{
			"key":       key,
			"kind":      value.Kind().String(),
			"value":     value.Raw(),
			"persisted": persist,
		})
	})
}

// lookupFile 解析 :dir/:file；目录必须已登记，create 为 false 时文件也必须已登记。
// ok 为 false 时错误响应已写入，调用方直接返回 err。
func lookupFile(c fiber.Ctx, h *helper.Helper, create bool) (*cache.File, bool, error) {
	dir, found := h.LookupDirectory(c.Params("dir"))
	if !found {
		return nil, false, server.RenderError(c, fiber.StatusNotFound, "directory_not_found")
	}
	name := c.Params("file")
	if !create {
		file, found := dir.Lookup(name)
		if !found {
			return nil, false, server.RenderError(c, fiber.StatusNotFound, "file_not_found")
		}
		return file, true, nil
	}
	if _, _, err := helper.SplitReference(name); err != nil {
		return nil, false, server.RenderError(c, fiber.StatusBadRequest, "invalid_file")
	}
	file, err := dir.GetOrCreate(name)
	if err != nil {
		return nil, false, server.RenderError(c, fiber.StatusConflict, "invalid_target")
	}
	return file, true, nil
}

type directoryPayload struct {
	Name  string   `json:"name"`
	Path  string   `json:"path"`
	Files []string `json:"files"`
}

type filePayload struct {
	File   string         `json:"file"`
	Path   string         `json:"path"`
	Loaded bool           `json:"loaded"`
	Values map[string]any `json:"values"`
}

type keyPayload struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Value    any    `json:"value"`
	Modified bool   `json:"modified"`
}

func encodeDirectories(dirs []*cache.Directory) []directoryPayload {
	result := make([]directoryPayload, 0, len(dirs))
	for _, dir := range dirs {
		files := dir.Names()
		if files == nil {
			files = []string{}
		}
		result = append(result, directoryPayload{
			Name:  dir.Name(),
			Path:  dir.Path(),
			Files: files,
		})
	}
	return result
}

func encodeFile(file *cache.File) filePayload {
	values := make(map[string]any)
	for key, value := range file.Values() {
		if value.IsAbsent() {
			continue
		}
		values[key] = value.Raw()
	}
	return filePayload{
		File:   file.QualifiedName(),
		Path:   file.Path(),
		Loaded: file.Loaded(),
		Values: values,
	}
}

package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FileFields 提供数据文件相关字段，供缓存层的加载/保存日志复用。
func FileFields(action, file, path string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"file":   file,
		"path":   path,
	}
}

// DirectoryFields 提供目录扫描相关字段。
func DirectoryFields(action, directory, path string) logrus.Fields {
	return logrus.Fields{
		"action":    action,
		"directory": directory,
		"path":      path,
	}
}

// RequestFields 提供管理接口请求的基础字段。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"action":     "admin_request",
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}

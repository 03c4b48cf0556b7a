package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cfg-helper/cfg-helper/internal/helper"
	"github.com/cfg-helper/cfg-helper/internal/logging"
)

// AppOptions controls how the admin application is built.
type AppOptions struct {
	Logger     *logrus.Logger
	Helper     *helper.Helper
	ListenPort int
}

const contextKeyRequestID = "_cfghelper_request_id"

// NewApp builds a Fiber application with request-id and access-log middleware
// and JSON error rendering. Routes are attached by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Helper == nil {
		return nil, errors.New("helper is required")
	}
	if opts.ListenPort <= 0 || opts.ListenPort > 65535 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	return app, nil
}

// requestContextMiddleware 生成请求 ID 并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		logger.WithFields(logging.RequestFields(reqID, c.Method(), c.Path(), status)).Info("admin request")
		return err
	}
}

func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := "internal_error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			if status == fiber.StatusNotFound {
				code = "not_found"
			} else if status < fiber.StatusInternalServerError {
				code = "bad_request"
			}
		}
		if status >= fiber.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"action":     "admin_request",
				"request_id": RequestID(c),
			}).WithError(err).Error("admin request failed")
		}
		return RenderError(c, status, code)
	}
}

// RenderError writes the standard {"error": code} payload.
func RenderError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": code,
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

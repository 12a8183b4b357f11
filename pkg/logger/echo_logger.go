package logger

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
)

// maskedHeaders are logged with their value truncated.
var maskedHeaders = map[string]bool{
	"Authorization":    true,
	"Stripe-Signature": true,
}

// NewEchoRequestLogger logs each HTTP request through zap. 4xx responses are
// logged at warn, 5xx and handler errors at error.
func NewEchoRequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	config := middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		HandleError:  true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogRequestID: true,
		LogUserAgent: true,
		LogStatus:    true,
		LogError:     true,
		LogHeaders:   []string{"Content-Type", "Authorization", "Stripe-Signature", "Idempotency-Key"},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request.remote_ip", v.RemoteIP),
				zap.String("request.method", v.Method),
				zap.String("request.uri", v.URI),
				zap.String("request.route", v.RoutePath),
				zap.String("request.user_agent", v.UserAgent),
				zap.String("request.request_id", v.RequestID),
				zap.Int("response.status", v.Status),
				zap.Duration("response.latency", v.Latency),
			}

			if len(v.Headers) > 0 {
				headers := make(map[string]string, len(v.Headers))
				for k, values := range v.Headers {
					if len(values) == 0 {
						continue
					}
					headers[k] = values[0]
					if maskedHeaders[k] {
						headers[k] = mask(values[0])
					}
				}
				fields = append(fields, zap.Any("request.headers", headers))
			}

			switch {
			case v.Error != nil:
				logger.Error("Request failed", append(fields, zap.Error(v.Error))...)
			case v.Status >= 500:
				logger.Error("Server error", fields...)
			case v.Status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request completed", fields...)
			}
			return nil
		},
	}

	return middleware.RequestLoggerWithConfig(config)
}

func mask(val string) string {
	if len(val) > 15 {
		return val[:10] + "..." + val[len(val)-5:]
	}
	return "[MASKED]"
}

// WithEchoLogger installs zap as echo's logger and replaces the HTTP error
// handler so every error response is JSON.
func WithEchoLogger(e *echo.Echo, logger *zap.Logger) {
	e.Logger = NewEchoZapLogger(logger)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var body interface{} = map[string]interface{}{
			"error": http.StatusText(code),
		}
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			switch msg := he.Message.(type) {
			case echo.Map, map[string]interface{}:
				body = msg
			default:
				body = map[string]interface{}{"error": msg}
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("HTTP error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
			)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error("Failed to send error response", zap.Error(err))
		}
	}
}

// EchoZapLogger implements echo.Logger on top of zap.
type EchoZapLogger struct {
	Logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewEchoZapLogger wraps logger for use as echo's logger.
func NewEchoZapLogger(logger *zap.Logger) *EchoZapLogger {
	return &EchoZapLogger{Logger: logger, sugar: logger.Sugar()}
}

func (l *EchoZapLogger) Output() io.Writer { return &zapWriter{logger: l.Logger} }

// SetOutput, SetLevel, SetHeader and SetPrefix are no-ops; zap owns those settings.
func (l *EchoZapLogger) SetOutput(w io.Writer) {}
func (l *EchoZapLogger) Level() log.Lvl      { return log.INFO }
func (l *EchoZapLogger) SetLevel(v log.Lvl)  {}
func (l *EchoZapLogger) SetHeader(h string)  {}
func (l *EchoZapLogger) Prefix() string      { return "" }
func (l *EchoZapLogger) SetPrefix(p string)  {}

func (l *EchoZapLogger) Print(i ...interface{})                 { l.sugar.Info(i...) }
func (l *EchoZapLogger) Printf(format string, i ...interface{}) { l.sugar.Infof(format, i...) }
func (l *EchoZapLogger) Printj(j log.JSON)                      { l.Logger.Info("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Debug(i ...interface{})                 { l.sugar.Debug(i...) }
func (l *EchoZapLogger) Debugf(format string, i ...interface{}) { l.sugar.Debugf(format, i...) }
func (l *EchoZapLogger) Debugj(j log.JSON)                      { l.Logger.Debug("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Info(i ...interface{})                  { l.sugar.Info(i...) }
func (l *EchoZapLogger) Infof(format string, i ...interface{})  { l.sugar.Infof(format, i...) }
func (l *EchoZapLogger) Infoj(j log.JSON)                       { l.Logger.Info("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Warn(i ...interface{})                  { l.sugar.Warn(i...) }
func (l *EchoZapLogger) Warnf(format string, i ...interface{})  { l.sugar.Warnf(format, i...) }
func (l *EchoZapLogger) Warnj(j log.JSON)                       { l.Logger.Warn("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Error(i ...interface{})                 { l.sugar.Error(i...) }
func (l *EchoZapLogger) Errorf(format string, i ...interface{}) { l.sugar.Errorf(format, i...) }
func (l *EchoZapLogger) Errorj(j log.JSON)                      { l.Logger.Error("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Fatal(i ...interface{})                 { l.sugar.Fatal(i...) }
func (l *EchoZapLogger) Fatalf(format string, i ...interface{}) { l.sugar.Fatalf(format, i...) }
func (l *EchoZapLogger) Fatalj(j log.JSON)                      { l.Logger.Fatal("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Panic(i ...interface{})                 { l.sugar.Panic(i...) }
func (l *EchoZapLogger) Panicf(format string, i ...interface{}) { l.sugar.Panicf(format, i...) }
func (l *EchoZapLogger) Panicj(j log.JSON)                      { l.Logger.Panic("json_message", zap.Any("json", j)) }

type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(string(p))
	return len(p), nil
}

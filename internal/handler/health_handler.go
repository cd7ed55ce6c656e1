package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker はバックエンドの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのハンドラー。
type HealthHandler struct {
	checkers map[string]HealthChecker
	logger   *slog.Logger
}

// NewHealthHandler はHealthHandlerを生成する。
// checkersは名前（"database"、"redis"など）ごとの疎通確認先。空でもよい。
func NewHealthHandler(checkers map[string]HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checkers: checkers, logger: logger}
}

// ServeHTTP は全ての疎通確認が成功すれば200、1つでも失敗すれば503を返す。
// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	result := map[string]string{"status": "ok"}
	for name, checker := range h.checkers {
		if err := checker.PingContext(ctx); err != nil {
			h.logger.Error("health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
			result[name] = "unavailable"
			result["status"] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}

	writeJSON(w, status, result)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/flexispot-bridge/internal/desk"
	"github.com/taoyao-code/flexispot-bridge/internal/metrics"
	"github.com/taoyao-code/flexispot-bridge/internal/protocol/flexispot"
)

// LastHeightFunc 读不到新高度时的回退来源（控制器心跳缓存）
type LastHeightFunc func() (float64, bool)

// DeskHandler 桌子控制接口处理器
type DeskHandler struct {
	desk    desk.Desk
	last    LastHeightFunc
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewDeskHandler 创建处理器，last 可为 nil
func NewDeskHandler(d desk.Desk, last LastHeightFunc, m *metrics.AppMetrics, logger *zap.Logger) *DeskHandler {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeskHandler{desk: d, last: last, metrics: m, logger: logger}
}

// HeightResponse 高度查询结果
type HeightResponse struct {
	Height float64 `json:"height,omitempty"`
	Known  bool    `json:"known"`
	Fresh  bool    `json:"fresh"`
}

// GetHeight 读取当前高度
// @Summary 查询桌子高度
// @Description 读取一次串口；没有新读数时返回心跳缓存的高度
// @Tags 桌子控制
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} HeightResponse
// @Failure 503 {object} map[string]interface{} "串口错误"
// @Router /api/desk/height [get]
func (h *DeskHandler) GetHeight(c *gin.Context) {
	height, ok, err := h.desk.Height()
	if err != nil {
		h.transportError(c, "height", err)
		return
	}
	if ok {
		c.JSON(http.StatusOK, HeightResponse{Height: height, Known: true, Fresh: true})
		return
	}
	if h.last != nil {
		if last, known := h.last(); known {
			c.JSON(http.StatusOK, HeightResponse{Height: last, Known: true})
			return
		}
	}
	c.JSON(http.StatusOK, HeightResponse{})
}

// RecallPreset 调用记忆位
// @Summary 调用记忆位
// @Description 唤醒、等待、发送记忆位命令，与 MQTT 调用走同一把串口锁
// @Tags 桌子控制
// @Produce json
// @Security ApiKeyAuth
// @Param preset path string true "记忆位（1-4 或 preset1-preset4）"
// @Success 200 {object} map[string]interface{} "成功"
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Failure 429 {object} map[string]interface{} "请求过于频繁"
// @Router /api/desk/presets/{preset} [post]
func (h *DeskHandler) RecallPreset(c *gin.Context) {
	preset, err := flexispot.ParsePreset(c.Param("preset"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_preset", "message": err.Error()})
		return
	}

	h.logger.Info("[begin] api preset recall", zap.Stringer("preset", preset), zap.String("remote_addr", c.ClientIP()))
	if err := h.desk.RecallPreset(preset); err != nil {
		h.transportError(c, preset.String(), err)
		return
	}
	h.metrics.PresetRecalls.WithLabelValues(preset.String(), "http").Inc()
	h.logger.Info("[ end ] api preset recall", zap.Stringer("preset", preset))

	c.JSON(http.StatusOK, gin.H{"preset": preset.String(), "status": "sent"})
}

// SendCommand 发送单条运动命令
// @Summary 发送运动命令
// @Tags 桌子控制
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "命令名（wakeup/up/down/memory/preset1-4）"
// @Success 200 {object} map[string]interface{} "成功"
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Router /api/desk/commands/{name} [post]
func (h *DeskHandler) SendCommand(c *gin.Context) {
	cmd, err := flexispot.ParseCommand(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_command", "message": err.Error()})
		return
	}
	if err := h.desk.SendCommand(cmd); err != nil {
		h.transportError(c, cmd.String(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"command": cmd.String(), "status": "sent"})
}

func (h *DeskHandler) transportError(c *gin.Context, op string, err error) {
	h.logger.Error("desk operation failed", zap.String("op", op), zap.Error(err))
	code := http.StatusInternalServerError
	if errors.Is(err, desk.ErrTransport) {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"error": "desk_unavailable", "message": err.Error()})
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/engine"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
	"github.com/taoyao-code/dfplayer-server/internal/script"
	"github.com/taoyao-code/dfplayer-server/internal/storage/history"
)

// Player 控制接口的会话操作面；*engine.Session 实现全部方法
type Player interface {
	script.Controller
	Snapshot() engine.SessionSnapshot
	PlayTrack(ctx context.Context, n int) error
	QueryVolume(ctx context.Context) (int, error)
	QueryEQ(ctx context.Context) (dfp.EQ, error)
	QueryFiles(ctx context.Context) (int, error)
	QueryTrack(ctx context.Context) (int, error)
}

// PlayerHandler 播放控制API处理器
type PlayerHandler struct {
	player  Player
	hist    *history.Repo
	reasons *dfp.ReasonMap
	logger  *zap.Logger
}

// NewPlayerHandler 创建播放控制API处理器。hist 可为 nil。
func NewPlayerHandler(player Player, hist *history.Repo, reasons *dfp.ReasonMap, logger *zap.Logger) *PlayerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayerHandler{player: player, hist: hist, reasons: reasons, logger: logger}
}

// fail 错误到HTTP状态码的统一映射
func (h *PlayerHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrTrackRange), errors.Is(err, dfp.ErrParamRange):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNoStorage), errors.Is(err, engine.ErrStorageGone):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrCommandTimeout), errors.Is(err, engine.ErrQueryTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, script.ErrUnknownCommand):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetState 当前设备与会话状态
func (h *PlayerHandler) GetState(c *gin.Context) {
	snap := h.player.Snapshot()
	resp := gin.H{"state": snap}
	if snap.LastErrorCode != 0 && h.reasons != nil {
		resp["lastErrorReason"] = h.reasons.Describe(snap.LastErrorCode)
	}
	c.JSON(http.StatusOK, resp)
}

// PlayTrack 播放指定曲目
func (h *PlayerHandler) PlayTrack(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "track must be an integer"})
		return
	}
	if err := h.player.PlayTrack(c.Request.Context(), n); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": n})
}

// sequenceRequest 曲目序列请求体
type sequenceRequest struct {
	Tracks []int `json:"tracks" binding:"required,min=1"`
}

// PlaySequence 按序播放一组曲目（阻塞到播完）
func (h *PlayerHandler) PlaySequence(c *gin.Context) {
	var req sequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.player.PlaySequence(c.Request.Context(), req.Tracks); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"played": req.Tracks})
}

// PlayAll 循环播放全部曲目；?shuffle=true 乱序
func (h *PlayerHandler) PlayAll(c *gin.Context) {
	shuffled := c.Query("shuffle") == "true"
	if err := h.player.PlayAll(c.Request.Context(), shuffled); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playingAll": true, "shuffled": shuffled})
}

// Next 下一曲
func (h *PlayerHandler) Next(c *gin.Context) {
	if err := h.player.Next(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cursor": h.player.Snapshot().Cursor})
}

// Prev 上一曲
func (h *PlayerHandler) Prev(c *gin.Context) {
	if err := h.player.Prev(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cursor": h.player.Snapshot().Cursor})
}

// Pause 暂停播放
func (h *PlayerHandler) Pause(c *gin.Context) {
	if err := h.player.Pause(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// Resume 恢复播放
func (h *PlayerHandler) Resume(c *gin.Context) {
	if err := h.player.Resume(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumed": true})
}

// Reset 复位模块；终态的唯一恢复入口
func (h *PlayerHandler) Reset(c *gin.Context) {
	if err := h.player.Reset(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.player.Snapshot()})
}

// volumeRequest 音量请求体
type volumeRequest struct {
	Level *int `json:"level" binding:"required"`
}

// SetVolume 设置音量
func (h *PlayerHandler) SetVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.player.SetVolume(c.Request.Context(), *req.Level); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"volume": h.player.Snapshot().Volume})
}

// GetVolume 查询模块音量
func (h *PlayerHandler) GetVolume(c *gin.Context) {
	vol, err := h.player.QueryVolume(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"volume": vol})
}

// eqRequest 均衡器请求体
type eqRequest struct {
	Name string `json:"name" binding:"required"`
}

// SetEQ 设置均衡器档位
func (h *PlayerHandler) SetEQ(c *gin.Context) {
	var req eqRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eq, ok := dfp.EQByName(strings.ToLower(req.Name))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown eq: " + req.Name})
		return
	}
	if err := h.player.SetEQ(c.Request.Context(), eq); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eq": eq.String()})
}

// GetEQ 查询均衡器档位
func (h *PlayerHandler) GetEQ(c *gin.Context) {
	eq, err := h.player.QueryEQ(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eq": eq.String()})
}

// repeatRequest 循环区间请求体
type repeatRequest struct {
	Start int `json:"start" binding:"required"`
	End   int `json:"end" binding:"required"`
}

// Repeat 循环播放闭区间
func (h *PlayerHandler) Repeat(c *gin.Context) {
	var req repeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.player.RepeatRange(c.Request.Context(), req.Start, req.End); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repeating": gin.H{"start": req.Start, "end": req.End}})
}

// StopRepeat 清除循环标志；在途曲目播完即止
func (h *PlayerHandler) StopRepeat(c *gin.Context) {
	h.player.StopRepeat()
	c.JSON(http.StatusOK, gin.H{"repeating": false})
}

// RunScript 执行文本脚本（请求体为脚本原文）
func (h *PlayerHandler) RunScript(c *gin.Context) {
	steps, err := script.Parse(c.Request.Body)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(steps) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty script"})
		return
	}
	runner := script.NewRunner(h.player, h.logger)
	if err := runner.Run(c.Request.Context(), steps); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": len(steps)})
}

// History 最近播放记录
func (h *PlayerHandler) History(c *gin.Context) {
	if h.hist == nil || !h.hist.Enabled() {
		c.JSON(http.StatusOK, gin.H{"plays": []any{}, "enabled": false})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil {
			limit = vv
		}
	}
	plays, err := h.hist.RecentPlays(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plays": plays, "enabled": true})
}

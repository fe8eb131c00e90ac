// Package api 播放控制HTTP API
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/api/middleware"
)

// RegisterPlayerRoutes 注册播放控制路由。token 非空时启用认证。
func RegisterPlayerRoutes(r *gin.Engine, h *PlayerHandler, token string, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v1 := r.Group("/api/v1")
	if token != "" {
		v1.Use(middleware.TokenAuth(token, logger))
		logger.Info("api authentication enabled")
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	// 状态与历史
	v1.GET("/state", h.GetState)
	v1.GET("/history", h.History)

	// 播放控制
	v1.POST("/play/:n", h.PlayTrack)
	v1.POST("/sequence", h.PlaySequence)
	v1.POST("/playall", h.PlayAll)
	v1.POST("/next", h.Next)
	v1.POST("/prev", h.Prev)
	v1.POST("/pause", h.Pause)
	v1.POST("/resume", h.Resume)
	v1.POST("/reset", h.Reset)

	// 音量与均衡器
	v1.GET("/volume", h.GetVolume)
	v1.POST("/volume", h.SetVolume)
	v1.GET("/eq", h.GetEQ)
	v1.POST("/eq", h.SetEQ)

	// 循环与脚本
	v1.POST("/repeat", h.Repeat)
	v1.POST("/repeat/stop", h.StopRepeat)
	v1.POST("/script", h.RunScript)

	logger.Info("player routes registered", zap.Int("endpoints", 17))
}

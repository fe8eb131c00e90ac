package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/api"
	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/engine"
	"github.com/taoyao-code/dfplayer-server/internal/httpserver"
	"github.com/taoyao-code/dfplayer-server/internal/logging"
	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfp"
	"github.com/taoyao-code/dfplayer-server/internal/storage/history"
	"github.com/taoyao-code/dfplayer-server/internal/store"
	"github.com/taoyao-code/dfplayer-server/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（空则使用默认搜索路径）")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 指标注册与处理器
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	metricsHandler := metrics.Handler(reg)

	// 4) 错误码描述表
	reasons := dfp.DefaultReasonMap()
	if cfg.Player.ReasonMapFile != "" {
		loaded, rerr := dfp.LoadReasonMap(cfg.Player.ReasonMapFile)
		if rerr != nil {
			log.Warn("load reason map failed, using defaults", zap.Error(rerr))
		} else {
			reasons.Merge(loaded)
		}
	}

	// 5) 串口链路与接收队列
	queue := transport.NewQueue(cfg.Serial.QueueSize)
	link, err := transport.Open(cfg.Serial, queue, log)
	if err != nil {
		log.Fatal("open serial link", zap.String("port", cfg.Serial.Port), zap.Error(err))
	}
	link.SetOnRxBytes(func(n int) { appm.SerialBytesRx.Add(float64(n)) })
	link.SetOnTxBytes(func(n int) { appm.SerialBytesTx.Add(float64(n)) })

	// 6) 设置存储：Redis 未启用或不可达时退回内存
	var settings engine.SettingsStore
	if cfg.Redis.Enabled {
		rs, rerr := store.NewRedis(cfg.Redis)
		if rerr != nil {
			log.Warn("redis unavailable, settings will not persist", zap.Error(rerr))
			settings = store.NewMemory()
		} else {
			defer func() { _ = rs.Close() }()
			settings = rs
		}
	} else {
		settings = store.NewMemory()
	}

	// 7) 播放历史（未启用时为空操作）
	hist, err := history.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("open play history store", zap.Error(err))
	}
	defer func() { _ = hist.Close() }()

	// 8) 引擎装配
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	state := engine.NewState()
	events := engine.NewEventSet()
	router := engine.NewRouter(queue, state, events, reasons, log, appm)
	disp := engine.NewDispatcher(link, state, events, cfg.Player, log, appm)
	sess := engine.NewSession(runCtx, disp, state, events, settings, cfg.Player, log)

	router.SetOnTrackFinished(func(track int) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hist.RecordFinished(ctx, sess.ID(), track)
	})
	disp.SetOnSent(func(cmd dfp.Command, param uint16, serr error) {
		if serr != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hist.RecordCommand(ctx, sess.ID(), cmd.String(), int(param))
	})

	go func() {
		if rerr := link.Run(runCtx); rerr != nil {
			log.Error("serial link stopped", zap.Error(rerr))
		}
	}()
	go func() {
		if rerr := router.Run(runCtx); rerr != nil {
			log.Error("response router stopped", zap.Error(rerr))
		}
	}()

	// 9) 上电复位；失败（如缺卡）不中止服务，API 仍可再触发 reset
	go func() {
		if rerr := sess.Reset(runCtx); rerr != nil {
			log.Warn("initial module reset failed", zap.Error(rerr))
		}
	}()

	// 10) HTTP 服务与播放控制路由
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, func() bool {
		return state.Snapshot().Online
	})
	handler := api.NewPlayerHandler(sess, hist, reasons, log)
	api.RegisterPlayerRoutes(httpSrv.Engine(), handler, cfg.HTTP.APIToken, log)

	go func() {
		if herr := httpSrv.Start(); herr != nil {
			log.Error("http server error", zap.Error(herr))
		}
	}()

	log.Info("dfplayer server started",
		zap.String("serialPort", cfg.Serial.Port),
		zap.String("httpAddr", cfg.HTTP.Addr),
	)

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(ctx)
	_ = link.Close()
	log.Info("dfplayer server stopped")
}

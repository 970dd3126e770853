// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/pkg/nacos"
	"backoffice/internal/pkg/tracing"
	"backoffice/internal/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type cleanup struct {
	name string
	fn   func(ctx context.Context) error
}

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client
	Config *Config

	cleanups *[]cleanup
}

// OnShutdown 登记一个关停时执行的清理函数，按登记的逆序执行。
func (a AppCtx) OnShutdown(name string, fn func(ctx context.Context) error) {
	*a.cleanups = append(*a.cleanups, cleanup{name: name, fn: fn})
}

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) error // 允许每个服务组装依赖并注册自己的 HTTP 路由
}

// StartService 封装了通用的启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	log := logger.Ctx(context.Background())

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. Nacos 注册是可选的
	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err = utils.GetOutboundIP()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
	}

	// 3. 创建 HTTP Server 并注册路由
	var cleanups []cleanup
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		appCtx := AppCtx{Mux: mux, Nacos: namingClient, Config: cfg, cleanups: &cleanups}
		if err := info.RegisterHandlers(appCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to wire service")
		}
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("✅ listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	// 4. 服务注册放在监听之后，避免被发现时还无法接收请求
	if namingClient != nil {
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 5. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Str("service", info.ServiceName).Msg("shutting down service")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	// a. 从 Nacos 注销服务
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Error().Err(err).Msg("error deregistering from Nacos")
		}
		namingClient.Close()
	}

	// b. 关闭 HTTP 服务器，不再接收新请求
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	} else {
		log.Info().Msg("HTTP server shut down.")
	}

	// c. 按后进先出的顺序执行清理
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		if err := c.fn(ctx); err != nil {
			log.Error().Err(err).Str("component", c.name).Msg("cleanup failed")
		} else {
			log.Info().Str("component", c.name).Msg("closed")
		}
	}

	// d. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}

	log.Info().Str("service", info.ServiceName).Msg("service gracefully shut down")
}

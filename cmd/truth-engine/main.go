// Command truth-engine starts a http server that receives broken programs,
// generates candidate repairs and accepts only the ones that pass inside a
// sandbox.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/config"
	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/model"
	restverifier "github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/rest_verifier"
	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/version"
	wsverifier "github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/ws_verifier"
	"github.com/venkatnarayana7/Python-Debugger/env"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
	"github.com/venkatnarayana7/Python-Debugger/generator"
	"github.com/venkatnarayana7/Python-Debugger/orchestrator"
	"github.com/venkatnarayana7/Python-Debugger/sandbox"
	"github.com/venkatnarayana7/Python-Debugger/worker"
)

var logger *zap.Logger

func main() {
	conf := loadConf()
	if conf.Version {
		fmt.Println(version.Version)
		return
	}
	initLogger(conf)
	defer logger.Sync()
	if ce := logger.Check(zap.InfoLevel, "Config loaded"); ce != nil {
		ce.Write(zap.String("config", fmt.Sprintf("%+v", redact(*conf))))
	}
	warnIfNotLinux()

	// Init environment pool
	b, builderParam := newEnvBuilder(conf)
	envPool := pool.NewPool(b)
	if conf.EnableMetrics {
		registerPoolStats(envPool)
	}
	prefork(envPool, conf.PreFork)
	executor := newExecutor(conf, envPool)
	work := newWorker(conf, executor)
	work.Start()
	logger.Info("Worker started",
		zap.Int("parallelism", conf.Parallelism),
		zap.String("backend", conf.Backend),
		zap.Duration("candidateTimeLimit", conf.CandidateTimeLimit))
	initCgroupMetrics(conf, builderParam)

	verifier := newOrchestrator(conf, work)
	activated := systemdListeners()

	servers := []initFunc{
		cleanUpWorker(work, envPool, b),
		initHTTPServer(conf, verifier, builderParam, activated),
		initMonitorHTTPServer(conf, activated),
	}

	// Gracefully shutdown, with signal / HTTP server / Monitor HTTP server
	sig := make(chan os.Signal, 1+len(servers))

	stops := []stopFunc{}
	for _, s := range servers {
		start, stop := s()
		if start != nil {
			go func() {
				start()
				sig <- os.Interrupt
			}()
		}
		if stop != nil {
			stops = append(stops, stop)
		}
	}

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Shutting Down...")

	ctx, cancel := context.WithTimeout(context.TODO(), time.Second*3)
	defer cancel()

	var eg errgroup.Group
	for _, s := range stops {
		eg.Go(func() error {
			return s(ctx)
		})
	}

	go func() {
		logger.Info("Shutdown Finished", zap.Error(eg.Wait()))
		cancel()
	}()
	<-ctx.Done()
}

func warnIfNotLinux() {
	if runtime.GOOS != "linux" {
		logger.Warn("Platform is not primarily supported", zap.String("GOOS", runtime.GOOS))
		logger.Warn("Only the docker backend is available on this platform")
	}
}

func loadConf() *config.Config {
	var conf config.Config
	if err := conf.Load(); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalln("load config failed ", err)
	}
	return &conf
}

// redact hides secrets before the config is logged
func redact(c config.Config) config.Config {
	for _, s := range []*string{&c.GeminiAPIKey, &c.OpenAIAPIKey, &c.AuthToken} {
		if *s != "" {
			*s = "***"
		}
	}
	return c
}

type (
	stopFunc func(ctx context.Context) error
	initFunc func() (start func(), cleanUp stopFunc)
)

func cleanUpWorker(work worker.Worker, envPool *pool.Pool, b pool.EnvBuilder) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		return nil, func(ctx context.Context) error {
			work.Shutdown()
			envPool.Shutdown()
			logger.Info("Worker shutdown")
			if m, ok := b.(*metricsEnvBuilder); ok {
				b = m.EnvBuilder
			}
			if c, ok := b.(io.Closer); ok {
				return c.Close()
			}
			return nil
		}
	}
}

func initHTTPServer(conf *config.Config, verifier model.Verifier, builderParam map[string]any, activated map[string][]net.Listener) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		r := initHTTPMux(conf, verifier, builderParam)
		srv := http.Server{
			Addr:    conf.HTTPAddr,
			Handler: r,
		}

		return func() {
				lis, err := newListener("http", conf.HTTPAddr, activated)
				if err != nil {
					logger.Error("Http server listen failed", zap.Error(err))
					return
				}
				logger.Info("Starting http server", zap.String("addr", conf.HTTPAddr), zap.String("listener", printListener(lis)))
				if err := srv.Serve(lis); errors.Is(err, http.ErrServerClosed) {
					logger.Info("Http server stopped", zap.Error(err))
				} else {
					logger.Error("Http server stopped", zap.Error(err))
				}
			}, func(ctx context.Context) error {
				logger.Info("Http server shutting down")
				return srv.Shutdown(ctx)
			}
	}
}

func initMonitorHTTPServer(conf *config.Config, activated map[string][]net.Listener) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		mr := initMonitorHTTPMux(conf)
		if mr == nil {
			return nil, nil
		}
		msrv := http.Server{
			Addr:    conf.MonitorAddr,
			Handler: mr,
		}
		return func() {
				lis, err := newListener("monitor", conf.MonitorAddr, activated)
				if err != nil {
					logger.Error("Monitoring http listen failed", zap.Error(err))
					return
				}
				logger.Info("Starting monitoring http server", zap.String("addr", conf.MonitorAddr), zap.String("listener", printListener(lis)))
				logger.Info("Monitoring http server stopped", zap.Error(msrv.Serve(lis)))
			}, func(ctx context.Context) error {
				logger.Info("Monitoring http server shutdown")
				return msrv.Shutdown(ctx)
			}
	}
}

func initLogger(conf *config.Config) {
	if conf.Silent {
		logger = zap.NewNop()
		return
	}

	var err error
	if conf.Release {
		logger, err = zap.NewProduction()
	} else {
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !conf.EnableDebug {
			config.Level.SetLevel(zap.InfoLevel)
		}
		logger, err = config.Build()
	}
	if err != nil {
		log.Fatalln("init logger failed ", err)
	}
}

func prefork(envPool sandbox.EnvironmentPool, prefork int) {
	if prefork <= 0 {
		return
	}
	logger.Info("Create prefork environments", zap.Int("count", prefork))
	m := make([]envexec.Environment, 0, prefork)
	for i := 0; i < prefork; i++ {
		e, err := envPool.Get()
		if err != nil {
			log.Fatalln("prefork environment failed ", err)
		}
		m = append(m, e)
	}
	for _, e := range m {
		envPool.Put(e)
	}
}

func initHTTPMux(conf *config.Config, verifier model.Verifier, builderParam map[string]any) http.Handler {
	if conf.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(ginzap.Ginzap(logger, "", false))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	// Metrics Handle
	if conf.EnableMetrics {
		initGinMetrics(r)
	}

	r.GET("/version", generateHandleVersion())
	r.GET("/config", generateHandleConfig(conf, builderParam))

	// Add auth token
	if conf.AuthToken != "" {
		r.Use(tokenAuth(conf.AuthToken))
		logger.Info("Attach token auth")
	}

	restverifier.NewVerifyHandle(verifier, logger).Register(r)
	wsverifier.New(verifier, logger).Register(r)

	return r
}

func initMonitorHTTPMux(conf *config.Config) http.Handler {
	if !conf.EnableMetrics && !conf.EnableDebug {
		return nil
	}
	mux := http.NewServeMux()
	if conf.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	if conf.EnableDebug {
		initDebugRoute(mux)
	}
	return mux
}

func initDebugRoute(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func initGinMetrics(r *gin.Engine) {
	p := ginprometheus.NewWithConfig(ginprometheus.Config{
		Subsystem:          "gin",
		DisableBodyReading: true,
	})
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	r.Use(p.HandlerFunc())
}

func tokenAuth(token string) gin.HandlerFunc {
	const bearer = "Bearer "
	return func(c *gin.Context) {
		reqToken := c.GetHeader("Authorization")
		if strings.HasPrefix(reqToken, bearer) && reqToken[len(bearer):] == token {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

func newEnvBuilder(conf *config.Config) (pool.EnvBuilder, map[string]any) {
	b, param, err := env.NewBuilder(env.Config{
		Backend:      conf.Backend,
		WorkDir:      conf.WorkDir,
		NetShare:     conf.NetShare,
		SeccompConf:  conf.SeccompConf,
		CgroupPrefix: conf.CgroupPrefix,
		NoFallback:   conf.NoFallback,
		DockerImage:  conf.DockerImage,

		MountConf:          conf.MountConf,
		TmpFsParam:         conf.TmpFsParam,
		ContainerCredStart: conf.ContainerCredStart,
		ContainerInitPath:  conf.ContainerInitPath,
	}, logger)
	if err != nil {
		logger.Fatal("create environment builder failed", zap.Error(err))
	}
	if conf.EnableMetrics {
		b = &metricsEnvBuilder{b}
	}
	return b, param
}

func newExecutor(conf *config.Config, envPool *pool.Pool) sandbox.Executor {
	profile := sandbox.DefaultProfile()
	if conf.Profile != "" {
		var err error
		if profile, err = sandbox.LoadProfile(conf.Profile); err != nil {
			logger.Fatal("load runtime profile failed", zap.String("profile", conf.Profile), zap.Error(err))
		}
	}
	var p sandbox.EnvironmentPool = envPool
	if conf.EnableMetrics {
		p = &metricsEnvPool{p}
	}
	return sandbox.New(sandbox.Config{
		EnvironmentPool:  p,
		Profile:          profile,
		OutputLimit:      *conf.OutputLimit,
		ExtraMemoryLimit: *conf.ExtraMemoryLimit,
		ProcLimit:        conf.ProcLimit,
		Logger:           logger,
	})
}

func newWorker(conf *config.Config, executor sandbox.Executor) worker.Worker {
	c := worker.Config{
		Executor:    executor,
		Parallelism: conf.Parallelism,
	}
	if conf.EnableMetrics {
		c.ExecObserver = execObserve
	}
	return worker.New(c)
}

func newGenerator(conf *config.Config) generator.Generator {
	var gs []generator.Generator
	if conf.GeminiAPIKey != "" {
		g, err := generator.NewGemini(context.Background(), conf.GeminiAPIKey, conf.GeminiModel)
		if err != nil {
			logger.Warn("gemini generator disabled", zap.Error(err))
		} else {
			gs = append(gs, g)
		}
	}
	if conf.OpenAIAPIKey != "" {
		g, err := generator.NewOpenAI(generator.OpenAIConfig{
			BaseURL: conf.OpenAIBaseURL,
			APIKey:  conf.OpenAIAPIKey,
			Model:   conf.OpenAIModel,
		})
		if err != nil {
			logger.Warn("openai generator disabled", zap.Error(err))
		} else {
			gs = append(gs, g)
		}
	}
	if len(gs) == 0 {
		logger.Warn("no generator api key configured, every verification will fail with generation_unavailable")
	}
	f := generator.NewFallback(logger, gs...)
	logger.Info("Generator chain", zap.String("name", f.Name()))
	return f
}

func newOrchestrator(conf *config.Config, work worker.Worker) *orchestrator.Orchestrator {
	c := orchestrator.Config{
		Worker:          work,
		Generator:       newGenerator(conf),
		MaxCandidates:   conf.MaxCandidates,
		TimeLimit:       conf.CandidateTimeLimit,
		MemoryLimit:     *conf.CandidateMemoryLimit,
		RequestDeadline: conf.RequestDeadline,
		Logger:          logger,
	}
	if conf.EnableMetrics {
		c.Observer = verifyObserve
	}
	return orchestrator.New(c)
}

func generateHandleVersion() func(*gin.Context) {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"buildVersion": version.Version,
			"goVersion":    runtime.Version(),
			"platform":     runtime.GOARCH,
			"os":           runtime.GOOS,
		})
	}
}

func generateHandleConfig(conf *config.Config, builderParam map[string]any) func(*gin.Context) {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"backend":              conf.Backend,
			"parallelism":          conf.Parallelism,
			"maxCandidates":        conf.MaxCandidates,
			"candidateTimeLimit":   conf.CandidateTimeLimit.String(),
			"candidateMemoryLimit": conf.CandidateMemoryLimit.String(),
			"requestDeadline":      conf.RequestDeadline.String(),
			"runnerConfig":         builderParam,
		})
	}
}

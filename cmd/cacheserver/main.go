package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"methodcache/pkg/cache"
	"methodcache/pkg/config"
	"methodcache/pkg/logger"
	"methodcache/pkg/metrics"
)

var (
	listenAddr = flag.String("listen", ":8080", "HTTP监听地址")
	ginMode    = flag.String("gin-mode", gin.ReleaseMode, "gin运行模式 (debug, release, test)")
)

// CacheServer 演示服务器：把缓存决策引擎放在一个模拟的慢速产品查询前面，
// 并暴露统计和失效管理接口。
type CacheServer struct {
	engine      *cache.Engine
	janitor     *cache.Janitor
	reporter    *metrics.Reporter
	server      *http.Server
	log         *logrus.Entry
	productSpec cache.Spec
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})
	log := logger.WithComponent("CacheServer")

	server, err := NewCacheServer(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to create cache server")
	}

	if err := server.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start cache server")
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down cache server...")
	server.Stop()
}

// NewCacheServer 组装引擎、清扫器、指标上报和HTTP路由
func NewCacheServer(cfg *config.Config) (*CacheServer, error) {
	redisStore := cache.NewRedisStore(redisStoreConfig(cfg))

	// 远程后端连不上也照常启动：声明 remote 后端的调用点会失败开放，
	// 后端恢复后无需重启
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	_ = redisStore.Connect(ctx)

	engine := cache.NewEngine(cache.EngineConfig{Remote: redisStore})

	janitor, err := cache.NewJanitor(engine, cfg.Cache.SweepSchedule)
	if err != nil {
		return nil, err
	}

	server := &CacheServer{
		engine:  engine,
		janitor: janitor,
		log:     logger.WithComponent("CacheServer"),
		productSpec: cache.Spec{
			Key: "ProductCache",
			ParameterMappings: []cache.ParameterMapping{
				{ParameterName: "id"},
			},
			TTLSeconds:     cache.TTLSet(600),
			Backend:        cache.BackendMemory,
			EvictionPolicy: cache.PolicyLRU,
			Capacity:       cfg.Cache.DefaultCapacity,
		},
	}

	if cfg.Metrics.Enabled {
		server.reporter = metrics.NewReporter(cfg.Metrics, engine.Stats)
	}

	gin.SetMode(*ginMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", server.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products/:id", server.getProduct)
		v1.DELETE("/products/:id/cache", server.invalidateProduct)
		v1.GET("/cache/stats", server.getStats)
	}

	server.server = &http.Server{
		Addr:    *listenAddr,
		Handler: router,
	}

	return server, nil
}

func redisStoreConfig(cfg *config.Config) cache.RedisStoreConfig {
	storeCfg := cache.RedisStoreConfig{
		Addr:           cfg.Redis.Addr,
		Password:       cfg.Redis.Password,
		DB:             cfg.Redis.DB,
		DialTimeout:    cfg.Redis.DialTimeout,
		ReadTimeout:    cfg.Redis.ReadTimeout,
		WriteTimeout:   cfg.Redis.WriteTimeout,
		RequestTimeout: cfg.Redis.RequestTimeout,
		PoolSize:       cfg.Redis.PoolSize,
	}
	if cfg.Breaker.Enabled {
		storeCfg.Breaker = &cache.BreakerSettings{
			MaxRequests: cfg.Breaker.MaxRequests,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
			ReadyToTrip: cfg.Breaker.ReadyToTrip,
		}
	}
	return storeCfg
}

// Start 启动HTTP服务和后台组件
func (s *CacheServer) Start() error {
	s.janitor.Start()
	if s.reporter != nil {
		s.reporter.Start()
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	s.log.WithField("addr", s.server.Addr).Info("Cache server started")
	return nil
}

// Stop 优雅停机
func (s *CacheServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("HTTP server shutdown error")
	}

	s.janitor.Stop()
	if s.reporter != nil {
		s.reporter.Close()
	}

	s.log.Info("Cache server stopped")
}

// getProduct 演示端点：缓存决策引擎包装一次模拟的慢速产品查询
func (s *CacheServer) getProduct(c *gin.Context) {
	id := c.Param("id")

	value, hit, err := s.engine.Resolve(c.Request.Context(), s.productSpec,
		map[string]interface{}{"id": id},
		func() (interface{}, error) {
			return fetchProduct(id)
		})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      value,
		"cache_hit": hit,
	})
}

// invalidateProduct 失效一个产品的缓存条目
func (s *CacheServer) invalidateProduct(c *gin.Context) {
	id := c.Param("id")

	err := s.engine.Invalidate(c.Request.Context(), s.productSpec,
		map[string]interface{}{"id": id})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invalidated": id})
}

// getStats 返回各命名空间的缓存统计
func (s *CacheServer) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}

func (s *CacheServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// fetchProduct 模拟一次昂贵的下游查询
func fetchProduct(id string) (interface{}, error) {
	time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)

	return map[string]interface{}{
		"id":         id,
		"name":       fmt.Sprintf("product-%s", id),
		"fetched_at": time.Now().Format(time.RFC3339),
	}, nil
}

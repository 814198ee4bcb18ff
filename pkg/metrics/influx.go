package metrics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"methodcache/pkg/cache"
	"methodcache/pkg/config"
	"methodcache/pkg/logger"
)

// StatsSource 提供待上报的各命名空间统计信息
type StatsSource func() map[string]cache.Stats

// Reporter 周期性地把缓存统计信息写入 InfluxDB。
// 上报是尽力而为的：写入失败只记录日志，不影响缓存引擎本身。
type Reporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	source   StatsSource
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	log      *logrus.Entry
}

// NewReporter 创建指标上报器
func NewReporter(cfg config.MetricsConfig, source StatsSource) *Reporter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	return &Reporter{
		client:   client,
		writeAPI: writeAPI,
		source:   source,
		interval: cfg.Interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      logger.WithComponent("MetricsReporter"),
	}
}

// Start 启动周期上报
func (r *Reporter) Start() {
	go r.run()
	r.log.WithField("interval", r.interval.String()).Info("Metrics reporter started")
}

func (r *Reporter) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// 异步写入错误通过错误通道回报
	go func() {
		for err := range r.writeAPI.Errors() {
			r.log.WithError(err).Warn("Failed to write cache stats point")
		}
	}()

	for {
		select {
		case <-ticker.C:
			r.report()
		case <-r.stop:
			return
		}
	}
}

// report 为每个命名空间写入一个数据点
func (r *Reporter) report() {
	now := time.Now()
	for namespace, stats := range r.source() {
		point := influxdb2.NewPointWithMeasurement("cache_stats").
			AddTag("namespace", namespace).
			AddField("size", stats.Size).
			AddField("capacity", stats.Capacity).
			AddField("hit_count", stats.HitCount).
			AddField("miss_count", stats.MissCount).
			AddField("hit_rate", stats.HitRate).
			SetTime(now)

		r.writeAPI.WritePoint(point)
	}
}

// Close 停止上报并释放客户端资源
func (r *Reporter) Close() {
	close(r.stop)
	<-r.done
	r.writeAPI.Flush()
	r.client.Close()
}

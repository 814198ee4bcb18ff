package cache

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"methodcache/pkg/logger"
)

// Janitor 周期性清扫器：按 cron 表达式清扫引擎所有内存命名空间中的
// 过期条目。惰性过期保证正确性，清扫只是及时回收长期无人访问的条目。
type Janitor struct {
	cron     *cron.Cron
	target   *Engine
	schedule string
	entryID  cron.EntryID
	log      *logrus.Entry
}

// NewJanitor 创建清扫器。schedule 支持 cron 表达式和 @every 描述符。
func NewJanitor(target *Engine, schedule string) (*Janitor, error) {
	j := &Janitor{
		cron:     cron.New(),
		target:   target,
		schedule: schedule,
		log:      logger.WithComponent("CacheJanitor"),
	}

	entryID, err := j.cron.AddFunc(schedule, func() {
		removed := target.SweepExpired()
		if removed > 0 {
			j.log.WithField("removed", removed).Debug("Janitor sweep completed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	j.entryID = entryID

	return j, nil
}

// Start 启动清扫器
func (j *Janitor) Start() {
	j.cron.Start()
	j.log.WithField("schedule", j.schedule).Info("Cache janitor started")
}

// Stop 停止清扫器，等待进行中的清扫结束
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.log.Info("Cache janitor stopped")
}

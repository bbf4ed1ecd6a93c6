package handlers

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// Metrics renders gauges in the Prometheus text format.
// GET /metrics
func Metrics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var b strings.Builder

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		writeGauge(&b, "thesisdesk_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
		writeGauge(&b, "thesisdesk_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
		writeGauge(&b, "thesisdesk_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))

		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "thesisdesk_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "thesisdesk_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		}

		writeGauge(&b, "thesisdesk_sse_active_clients", "Number of active SSE connections", float64(services.GetSSEHub().ClientCount()))

		queueAsync := 0.0
		if q := services.GetTaskQueue(); q != nil && q.IsAsync() {
			queueAsync = 1.0
		}
		writeGauge(&b, "thesisdesk_queue_async_enabled", "Whether the Redis queue is enabled (1=yes, 0=no)", queueAsync)

		roles := make(map[string]float64, len(models.Roles))
		for _, role := range models.Roles {
			var n int64
			db.Model(&models.User{}).Where("role = ?", role).Count(&n)
			roles[strings.ToLower(string(role))] = float64(n)
		}
		writeGaugeFamily(&b, "thesisdesk_users", "Users by role", "role", roles)

		statuses := make(map[string]float64, 3)
		for _, status := range []models.AdviseeStatus{models.AdviseePending, models.AdviseeActive, models.AdviseeInactive} {
			var n int64
			db.Model(&models.Advisee{}).Where("status = ?", status).Count(&n)
			statuses[strings.ToLower(string(status))] = float64(n)
		}
		writeGaugeFamily(&b, "thesisdesk_advisees", "Advisee records by status", "status", statuses)

		c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}

func writeGaugeFamily(b *strings.Builder, name, help, label string, samples map[string]float64) {
	keys := make([]string, 0, len(samples))
	for k := range samples {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=%q} %g\n", name, label, k, samples[k])
	}
	b.WriteString("\n")
}

package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
)

var startedAt = time.Now()

type healthReport struct {
	Status     string  `json:"status"`
	UptimeSecs int64   `json:"uptime_secs"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	PidStatus  string  `json:"pid_status"`
}

type inspectRow struct {
	Key  string `json:"key"`
	Size int    `json:"size"`
}

// StartDebugServer exposes Prometheus metrics, a health report with
// process stats, and a raw key inspector over the store. It listens on
// all interfaces so it stays reachable from outside a container.
func StartDebugServer(db *badger.DB, registry *prometheus.Registry, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/inspect", handleInspect(db))

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := healthReport{
		Status:     "ok",
		UptimeSecs: int64(time.Since(startedAt).Seconds()),
		Goroutines: runtime.NumGoroutine(),
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := p.MemoryInfo(); err == nil {
			report.RSSBytes = memInfo.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			report.CPUPercent = cpu
		}
		if status, err := p.Status(); err == nil {
			report.PidStatus = status
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

func handleInspect(db *badger.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		var rows []inspectRow
		_ = db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				rows = append(rows, inspectRow{
					Key:  string(item.Key()),
					Size: int(item.ValueSize()),
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	}
}

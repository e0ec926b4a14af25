// Command bench runs a synthetic workload against a metered cache and
// exposes optional pprof/Prometheus endpoints, for measuring the
// decorator's hot-path overhead under contention.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rjmurillo/cachemetrics/cache"
	"github.com/rjmurillo/cachemetrics/cache/memory"
	"github.com/rjmurillo/cachemetrics/metered"
	"github.com/rjmurillo/cachemetrics/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int("cap", 100_000, "cache capacity (entries)")
		shards   = flag.Int("shards", 0, "number of shards (0=auto)")
		ttl      = flag.Duration("ttl", 0, "default TTL (0=none)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys = flag.Int("keys", 1_000_000, "keyspace size")
		seed = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Cache under test ----
	inner, err := memory.New[string, []byte](memory.Options[string, []byte]{
		Capacity:      *capacity,
		Shards:        *shards,
		DefaultTTL:    *ttl,
		SweepInterval: time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}

	reg := metered.NewRegistry(noop.NewMeterProvider().Meter("bench"))
	c, err := metered.New[string, []byte](inner, reg, metered.Options{
		Name:         "bench",
		CloseWrapped: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	// ---- Prometheus metrics (on DefaultServeMux) ----
	prometheus.MustRegister(prom.NewCollector(c, "cachemetrics", "bench", nil))
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Preload ----
	preload := *capacity / 2
	for i := 0; i < preload; i++ {
		_ = c.Set("k:"+strconv.Itoa(i), []byte("x"), cache.EntryOptions[string, []byte]{})
	}

	// ---- Workload ----
	log.Printf("bench: %d workers, %v, %d%% reads, keyspace %d", *workers, *duration, *readPct, *keys)
	var ops atomic.Int64
	deadline := time.Now().Add(*duration)

	var wg sync.WaitGroup
	wg.Add(*workers)
	for w := 0; w < *workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(*seed + int64(id)*9973))
			n := int64(0)
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(*keys))
				if r.Intn(100) < *readPct {
					_, _, _ = c.Get(k)
				} else {
					_ = c.Set(k, []byte("x"), cache.EntryOptions[string, []byte]{})
				}
				n++
			}
			ops.Add(n)
		}(w)
	}
	wg.Wait()

	s := c.Stats()
	total := ops.Load()
	fmt.Printf("ops: %d (%.0f ops/s)\n", total, float64(total)/duration.Seconds())
	fmt.Printf("hits: %d  misses: %d  hit-rate: %.2f%%\n",
		s.Hits, s.Misses, 100*float64(s.Hits)/float64(s.Hits+s.Misses))
	fmt.Printf("evictions: capacity=%d expired=%d token_expired=%d\n",
		s.Capacity, s.Expired, s.TokenExpired)
}

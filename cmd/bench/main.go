// Command bench reads random synthetic files through the cache: hits checksum
// the cached bytes under a read session, misses load the file under a change
// session. Evicted buffers are recycled once the last reader lets go.
package main

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/racache/cache"
	pmet "github.com/IvanBrykalov/racache/metrics/prom"
)

func main() {
	var cfg config
	kctx := kong.Parse(&cfg,
		kong.Name("bench"),
		kong.Description("Random-access cache benchmark over synthetic files."),
		kong.UsageOnError(),
	)

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	err := cfg.loadProfile()
	if err == nil {
		err = cfg.normalize()
	}
	if err == nil {
		logger = level.NewFilter(logger, levelOption(cfg.LogLevel))
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = run(ctx, cfg, logger, os.Stdout)
		stop()
	}
	kctx.FatalIfErrorf(err)
}

func levelOption(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// stats are the counters reported at the end of a run.
type stats struct {
	hits, misses, loads, evictions atomic.Uint64
	checksum                       atomic.Uint32 // sum of all checksums, keeps the work observable
}

func run(ctx context.Context, cfg config, logger log.Logger, out io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	access := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "racache",
		Subsystem: "bench",
		Name:      "access_duration_seconds",
		Help:      "Latency of one file access through the cache",
		Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
	}, []string{"result"})
	reg.MustRegister(access)
	hitObs, missObs := access.WithLabelValues("hit"), access.WithLabelValues("miss")

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			level.Info(logger).Log("msg", "serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	dir := cfg.Dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "racache-bench-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}
	files, err := makeRandomFiles(dir, cfg.Entries, cfg.FileSize, cfg.Seed)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "files ready", "dir", dir, "count", len(files),
		"total", humanize.Bytes(uint64(len(files)*cfg.FileSize)))

	var (
		st   stats
		pool = sync.Pool{New: func() any {
			b := make([]byte, cfg.FileSize)
			return &b
		}}
	)
	c, err := cache.New(cache.Options[string, *[]byte]{
		Capacity: cfg.CacheSize,
		OnEvict: func(_ string, buf *[]byte) {
			st.evictions.Add(1)
			pool.Put(buf)
		},
		Metrics: pmet.New(reg, "racache", "bench", nil),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(runCtx)
	for w := 0; w < cfg.Parallel; w++ {
		r := rand.New(rand.NewSource(cfg.Seed + int64(w)*9973))
		g.Go(func() error {
			for gctx.Err() == nil {
				name := files[r.Intn(len(files))]
				t0 := time.Now()
				hit, err := access1(gctx, c, name, &pool, &st)
				if err != nil {
					if cache.IsCanceled(err) {
						return nil
					}
					return err
				}
				if hit {
					hitObs.Observe(time.Since(t0).Seconds())
				} else {
					missObs.Observe(time.Since(t0).Seconds())
				}
			}
			return nil
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	report(out, cfg, elapsed, &st, c.Len())
	return nil
}

// access1 performs one request for name: a checksum of the cached bytes on
// a hit, a load under the key's change session on a miss.
func access1(ctx context.Context, c cache.Cache[string, *[]byte], name string, pool *sync.Pool, st *stats) (hit bool, err error) {
	if s, ok := c.TryRead(name); ok {
		st.checksum.Add(crc32.ChecksumIEEE(*s.Value()))
		s.Close()
		st.hits.Add(1)
		return true, nil
	}
	st.misses.Add(1)

	s, err := c.BeginChange(ctx, name)
	if err != nil {
		return false, err
	}
	defer s.Close()

	// loaded by a concurrent requester while we waited
	if buf, ok := s.Value(); ok {
		st.checksum.Add(crc32.ChecksumIEEE(*buf))
		return false, nil
	}

	buf := pool.Get().(*[]byte)
	if err := readFile(name, *buf); err != nil {
		pool.Put(buf)
		return false, err
	}
	st.loads.Add(1)
	return false, s.SetValue(buf)
}

func readFile(name string, buf []byte) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.ReadFull(f, buf)
	return err
}

func makeRandomFiles(dir string, n, size int, seed int64) ([]string, error) {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, size)
	files := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, strconv.Itoa(i))
		r.Read(buf)
		if err := os.WriteFile(name, buf, 0o600); err != nil {
			return nil, err
		}
		files = append(files, name)
	}
	return files, nil
}

func report(out io.Writer, cfg config, elapsed time.Duration, st *stats, resident int) {
	hits, misses := st.hits.Load(), st.misses.Load()
	ops := hits + misses
	hitRate := 0.0
	if ops > 0 {
		hitRate = float64(hits) / float64(ops) * 100
	}

	fmt.Fprintf(out, "entries=%s cache=%s parallel=%d file=%s dur=%v seed=%d\n",
		humanize.Comma(int64(cfg.Entries)), humanize.Comma(int64(cfg.CacheSize)), cfg.Parallel,
		humanize.IBytes(uint64(cfg.FileSize)), elapsed.Round(time.Millisecond), cfg.Seed)
	fmt.Fprintf(out, "ops=%s (%s ops/s)  hits=%s  misses=%s  hit-rate=%.2f%%\n",
		humanize.Comma(int64(ops)), humanize.Comma(int64(float64(ops)/elapsed.Seconds())),
		humanize.Comma(int64(hits)), humanize.Comma(int64(misses)), hitRate)
	fmt.Fprintf(out, "loads=%s  evictions=%s  resident=%d  checksum=%08x\n",
		humanize.Comma(int64(st.loads.Load())), humanize.Comma(int64(st.evictions.Load())),
		resident, st.checksum.Load())
}

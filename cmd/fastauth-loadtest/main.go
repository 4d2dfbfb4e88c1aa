package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/fastauth"
	"github.com/MrEthical07/fastauth/store"
	"github.com/MrEthical07/fastauth/store/memstore"
	"github.com/MrEthical07/fastauth/store/redisstore"
)

const loadPassword = "Load-Test-Pass-1"

type userState struct {
	email   string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 2000, "number of accounts to register")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		loginOps    = flag.Int("login-ops", 2000, "operations in the login phase")
		bcryptCost  = flag.Int("bcrypt-cost", 4, "bcrypt cost used for all hashes")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, FASTAUTH_REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "fa-load", "refresh token key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *loginOps < 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("FASTAUTH_REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := fastauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("L", 32))
	cfg.Password.BcryptCost = *bcryptCost
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := fastauth.New().
		WithConfig(cfg).
		WithStore(store.Combine(memstore.New(), redisstore.New(client, redisstore.Options{Prefix: *prefix}))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)
	fmt.Printf("registering %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		email := fmt.Sprintf("load-%d@example.com", i)
		res, err := engine.Register(ctx, fastauth.RegisterRequest{Email: email, Password: loadPassword})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		states[i].email = email
		states[i].access = res.AccessToken
		states[i].refresh = res.RefreshToken
	}
	fmt.Printf("registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		_, err := engine.ValidateAccessToken(ctx, s.access)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.refresh = res.RefreshToken
		s.access = res.AccessToken
		return nil
	})
	loginStats := runPhase(*loginOps, *concurrency, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		_, err := engine.Login(ctx, fastauth.LoginRequest{Identifier: s.email, Password: loadPassword})
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("login", loginStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("tokens issued=%d refresh invalid=%d\n",
		snap.Counters[fastauth.MetricTokensIssued], snap.Counters[fastauth.MetricRefreshInvalid])
}

// runPhase spreads ops calls of op over concurrency workers.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	if ops == 0 {
		return phaseStats{}
	}
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

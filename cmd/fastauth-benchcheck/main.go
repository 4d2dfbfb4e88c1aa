// Command fastauth-benchcheck compares two `go test -bench` outputs and
// fails when a tracked benchmark got slower than the allowed ratio.
//
//	go test -run '^$' -bench . -count 6 . > base.txt
//	(apply change)
//	go test -run '^$' -bench . -count 6 . > cand.txt
//	go run ./cmd/fastauth-benchcheck -baseline base.txt -candidate cand.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// defaultTracked lists the hot paths worth gating. Login and Register are
// dominated by password hashing cost and are left out.
var defaultTracked = map[string][]string{
	"BenchmarkValidateAccessToken": {"ns/op", "allocs/op"},
	"BenchmarkRefresh":             {"ns/op"},
	"BenchmarkRefreshRedis":        {"ns/op"},
}

type samples map[string]map[string][]float64

type comparison struct {
	Benchmark string
	Unit      string
	Baseline  float64
	Candidate float64
	Delta     float64
	Missing   bool
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
		track         string
	)
	flag.StringVar(&baselinePath, "baseline", "", "baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "allowed slowdown ratio (0.30 = +30%)")
	flag.StringVar(&track, "track", "", "comma separated Name:unit pairs overriding the default set")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}
	tracked := defaultTracked
	if track != "" {
		var err error
		if tracked, err = parseTrack(track); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	base, err := readFile(baselinePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "baseline: %v\n", err)
		os.Exit(1)
	}
	cand, err := readFile(candidatePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "candidate: %v\n", err)
		os.Exit(1)
	}

	results := compare(base, cand, tracked)
	failed := report(os.Stdout, results, threshold)
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d benchmark metric(s) over the %.0f%% limit\n", failed, threshold*100)
		os.Exit(1)
	}
}

func parseTrack(s string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		name, unit, ok := strings.Cut(part, ":")
		if !ok || name == "" || unit == "" {
			return nil, fmt.Errorf("bad -track entry %q, want Name:unit", part)
		}
		out[name] = append(out[name], unit)
	}
	return out, nil
}

func readFile(path string, tracked map[string][]string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, tracked)
}

func parse(r io.Reader, tracked map[string][]string) (samples, error) {
	out := samples{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := stripProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, sc.Err()
}

// stripProcs turns "BenchmarkRefresh-8" into "BenchmarkRefresh".
func stripProcs(raw string) string {
	if i := strings.LastIndexByte(raw, '-'); i > 0 {
		if _, err := strconv.Atoi(raw[i+1:]); err == nil {
			return raw[:i]
		}
	}
	return raw
}

func compare(base, cand samples, tracked map[string][]string) []comparison {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []comparison
	for _, name := range names {
		for _, unit := range tracked[name] {
			c := comparison{Benchmark: name, Unit: unit}
			b, n := base[name][unit], cand[name][unit]
			if len(b) == 0 || len(n) == 0 {
				c.Missing = true
				out = append(out, c)
				continue
			}
			c.Baseline, c.Candidate = median(b), median(n)
			if c.Baseline > 0 {
				c.Delta = (c.Candidate - c.Baseline) / c.Baseline
			} else if c.Candidate > 0 {
				c.Delta = 1
			}
			out = append(out, c)
		}
	}
	return out
}

// report prints one line per comparison and returns how many failed.
func report(w io.Writer, results []comparison, threshold float64) int {
	failed := 0
	fmt.Fprintf(w, "%-32s %-10s %14s %14s %9s\n", "benchmark", "unit", "baseline", "candidate", "delta")
	for _, r := range results {
		if r.Missing {
			failed++
			fmt.Fprintf(w, "%-32s %-10s %14s %14s %9s  FAIL (no samples)\n", r.Benchmark, r.Unit, "-", "-", "-")
			continue
		}
		status := ""
		if r.Delta > threshold {
			failed++
			status = "  FAIL"
		}
		fmt.Fprintf(w, "%-32s %-10s %14.2f %14.2f %+8.1f%%%s\n", r.Benchmark, r.Unit, r.Baseline, r.Candidate, r.Delta*100, status)
	}
	return failed
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

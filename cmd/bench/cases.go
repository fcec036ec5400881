// README: Bench cases; env, schema, HTTP API, concurrency and throughput checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"pickleheart/internal/infra"
)

const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusPending = "PENDING"
	StatusSkip    = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = infra.NewRedis(r.cfg.RedisAddr, "", 0)
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func tally(results []Result) map[string]int {
	out := map[string]int{}
	for _, res := range results {
		out[res.Status]++
	}
	return out
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "database reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "geofence guard backend reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: StatusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migrations/*.sql",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: StatusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				if err := infra.ApplyMigrations(ctx, r.db, r.cfg.MigrationsDir); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "every CREATE TABLE in migrations/ exists",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationsDir)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: StatusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: StatusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: StatusPass, Note: fmt.Sprintf("%d tables", len(tables))}
			},
		},
		{
			Name:  "Concurrency: one open presence per user",
			Focus: "parallel check-ins for one user leave a single open row",
			Run:   concurrentCheckIn,
		},
		{
			Name:  "API: health",
			Focus: "server reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
				resp, err := r.httpc.Do(req)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: StatusFail, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: StatusPass, Latency: time.Since(start)}
			},
		},
		httpRequestCase("Auth: missing token -> 401", http.MethodPost, base+"/api/geofence/start", nil, false, []int{401}),

		httpCase("Location: report permission", http.MethodPut, base+"/api/location/permission", map[string]any{
			"permission": "granted",
			"capable":    true,
		}, []int{200}),
		httpCase("Location: invalid permission -> 400", http.MethodPut, base+"/api/location/permission", map[string]any{
			"permission": "maybe",
			"capable":    true,
		}, []int{400}),
		httpCase("Geofence: start", http.MethodPost, base+"/api/geofence/start", nil, []int{200}),
		httpCase("Location: push sample", http.MethodPost, base+"/api/location/samples", map[string]any{
			"lat":        39.7392,
			"lng":        -104.9903,
			"accuracy_m": 10,
		}, []int{202}),
		httpCase("Location: out-of-range sample -> 400", http.MethodPost, base+"/api/location/samples", map[string]any{
			"lat": 123.0,
			"lng": 0.0,
		}, []int{400}),
		httpCase("Geofence: diagnostics", http.MethodGet, base+"/api/geofence/diagnostics", nil, []int{200}),
		httpCase("Parks: active near", http.MethodGet, base+"/api/parks/active?lat=39.7392&lng=-104.9903", nil, []int{200}),
		httpCase("Friends: presence", http.MethodGet, base+"/api/friends/presence", nil, []int{200}),
		httpCase("Matching: invalid preferences -> 400", http.MethodPut, base+"/api/me/matching-preferences", map[string]any{
			"mode": "sometimes",
		}, []int{400}),
		httpCase("Matching: run", http.MethodPost, base+"/api/matching/run", nil, []int{200, 409}),
		httpCase("Geofence: stop", http.MethodPost, base+"/api/geofence/stop", nil, []int{200, 409}),

		{
			Name:  "Perf: location sample throughput",
			Focus: "sustained sample posts",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/location/samples", map[string]any{
					"lat": 39.7392, "lng": -104.9903, "accuracy_m": 10,
				})
			},
		},
	}
}

// httpCase sends an authenticated request; without a token it is skipped.
func httpCase(name, method, url string, body any, okStatuses []int) TestCase {
	tc := httpRequestCase(name, method, url, body, true, okStatuses)
	run := tc.Run
	tc.Run = func(ctx context.Context, r *Runner) Result {
		if r.cfg.Token == "" {
			return Result{Status: StatusSkip, Note: "no -token"}
		}
		return run(ctx, r)
	}
	return tc
}

func httpRequestCase(name, method, url string, body any, withToken bool, okStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = strings.NewReader(string(b))
			}
			req, _ := http.NewRequestWithContext(ctx, method, url, reader)
			req.Header.Set("Content-Type", "application/json")
			if withToken {
				req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
			}
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: StatusFail, Note: err.Error()}
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			latency := time.Since(start)

			note := fmt.Sprintf("status=%d", resp.StatusCode)
			if contains(okStatuses, resp.StatusCode) {
				return Result{Status: StatusPass, Latency: latency, Note: note}
			}
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented {
				return Result{Status: StatusPending, Latency: latency, Note: note}
			}
			return Result{Status: StatusFail, Latency: latency, Note: note}
		},
	}
}

// concurrentCheckIn races inserts of an open presence row for one user and
// expects the partial unique index to admit exactly one.
func concurrentCheckIn(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "db not configured"}
	}
	parkID := "bench-" + uuid.NewString()
	userID := "bench-" + uuid.NewString()
	if _, err := r.db.Exec(ctx, `INSERT INTO parks (id, name, latitude, longitude) VALUES ($1, 'bench park', 0, 0)`, parkID); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	defer func() {
		_, _ = r.db.Exec(context.Background(), `DELETE FROM presence WHERE park_id = $1`, parkID)
		_, _ = r.db.Exec(context.Background(), `DELETE FROM parks WHERE id = $1`, parkID)
	}()

	var ok atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.db.Exec(ctx,
				`INSERT INTO presence (id, user_id, park_id, arrived_at, auto_checked_in) VALUES ($1, $2, $3, now(), TRUE)`,
				uuid.NewString(), userID, parkID)
			if err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := ok.Load(); n != 1 {
		return Result{Status: StatusFail, Note: fmt.Sprintf("open rows=%d", n)}
	}
	return Result{Status: StatusPass, Latency: time.Since(start), Note: fmt.Sprintf("attempts=%d", r.cfg.Concurrency)}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	if r.cfg.Token == "" {
		return Result{Status: StatusSkip, Note: "no -token"}
	}
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
				resp, err := r.httpc.Do(req)
				if err != nil {
					errCount.Add(1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode >= 300 {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: StatusFail, Note: fmt.Sprintf("no requests completed, errors=%d", errCount.Load())}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

var createTableRE = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

// extractTables lists the tables created by the *.sql files in dir.
func extractTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var tables []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, stmt := range infra.SplitSQL(infra.StripSQLComments(string(b))) {
			if m := createTableRE.FindStringSubmatch(stmt); m != nil {
				tables = append(tables, m[1])
			}
		}
	}
	return tables, nil
}

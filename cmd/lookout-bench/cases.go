// README: Bench checks: environment, migrations, the session flow over HTTP, and heading load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"lookout/internal/modules/session"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// sessionID is set by the create check and used by the ones after it.
	sessionID string
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
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
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency.Round(time.Millisecond))
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "HTTP: health", Run: checkHealth},
		{Name: "Session: create", Run: createSession},
		{Name: "Session: target after permission, position and heading", Run: targetFlow},
		{Name: "Redis: snapshot published", Run: checkPublished},
		{Name: "Load: heading updates", Run: headingLoad},
		{Name: "Session: delete", Run: deleteSession},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, stmt := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	var missing []string
	for _, table := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return Result{Status: statusFail, Note: "missing: " + strings.Join(missing, ", ")}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	status, _, latency, err := r.call(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: statusPass, Latency: latency}
}

func createSession(ctx context.Context, r *Runner) Result {
	status, body, latency, err := r.call(ctx, http.MethodPost, "/api/sessions", nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		return Result{Status: statusFail, Latency: latency, Note: "no session id in response"}
	}
	r.sessionID = resp.ID
	return Result{Status: statusPass, Latency: latency, Note: resp.ID}
}

func targetFlow(ctx context.Context, r *Runner) Result {
	if r.sessionID == "" {
		return Result{Status: statusSkip, Note: "no session"}
	}
	base := "/api/sessions/" + r.sessionID
	start := time.Now()
	if status, _, _, err := r.call(ctx, http.MethodPost, base+"/permission", map[string]bool{"granted": true}); err != nil || status != http.StatusAccepted {
		return Result{Status: statusFail, Note: fmt.Sprintf("permission: status=%d err=%v", status, err)}
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		r.call(ctx, http.MethodPost, base+"/position", map[string]float64{"lat": r.cfg.Lat, "lng": r.cfg.Lng})
		r.call(ctx, http.MethodPost, base+"/heading", map[string]float64{"heading": r.cfg.Heading})

		_, body, _, err := r.call(ctx, http.MethodGet, base, nil)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		var snap session.Snapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if d := snap.Result.Targeted; d != nil && !snap.Result.IsLoading {
			return Result{Status: statusPass, Latency: time.Since(start), Note: d.Title}
		}
		if snap.Position != nil && len(snap.Candidates) > 0 && snap.Result.Targeted == nil && !snap.Result.IsLoading {
			// Candidates arrived but none lies ahead of the heading.
			return Result{Status: statusPass, Latency: time.Since(start), Note: fmt.Sprintf("%d candidates, none ahead", len(snap.Candidates))}
		}
		select {
		case <-ctx.Done():
			return Result{Status: statusFail, Note: ctx.Err().Error()}
		case <-time.After(200 * time.Millisecond):
		}
	}
	return Result{Status: statusFail, Latency: time.Since(start), Note: "no candidates before deadline"}
}

func checkPublished(ctx context.Context, r *Runner) Result {
	if r.sessionID == "" || r.redis == nil {
		return Result{Status: statusSkip, Note: "no session or redis"}
	}
	snap, err := session.NewStore(r.redis, 0).Load(ctx, r.sessionID)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("state=%s candidates=%d", snap.State, len(snap.Candidates))}
}

func headingLoad(ctx context.Context, r *Runner) Result {
	if r.sessionID == "" {
		return Result{Status: statusSkip, Note: "no session"}
	}
	path := "/api/sessions/" + r.sessionID + "/heading"
	end := time.Now().Add(r.cfg.Duration)
	var ok, failed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			heading := r.cfg.Heading + float64(i%5)
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.call(ctx, http.MethodPost, path, map[string]float64{"heading": heading})
				if err != nil || status != http.StatusAccepted {
					failed.Add(1)
					continue
				}
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if ok.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(ok.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, failed.Load())}
}

func deleteSession(ctx context.Context, r *Runner) Result {
	if r.sessionID == "" {
		return Result{Status: statusSkip, Note: "no session"}
	}
	status, _, latency, err := r.call(ctx, http.MethodDelete, "/api/sessions/"+r.sessionID, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusNoContent {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: statusPass, Latency: latency}
}

func (r *Runner) call(ctx context.Context, method, path string, payload any) (int, []byte, time.Duration, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, time.Since(start), err
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

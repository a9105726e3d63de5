// README: Bench cases: environment checks, the N-driver claim race, and the
// chat publish/subscribe round trip.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
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

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration not set"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				if err := r.applyMigration(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "API: health",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				resp, err := r.httpc.Get(r.cfg.BaseURL + "/health")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status %d", resp.StatusCode)}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name: "Claim: exactly one winner",
			Run:  runClaimRace,
		},
		{
			Name: "Chat: send/subscribe round trip",
			Run:  runChatRoundTrip,
		},
	}
}

// runClaimRace seeds one pending ride order directly in the database, then
// fires N concurrent claims at the API. Exactly one must win; every other
// driver must get a 409.
func runClaimRace(ctx context.Context, r *Runner) Result {
	if r.cfg.Token == "" {
		return Result{Status: "SKIP", Note: "no token"}
	}
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}

	orderID := fmt.Sprintf("bench-%d", time.Now().UnixNano())
	_, err := r.db.Exec(ctx, `
        INSERT INTO ride_orders (id, customer_id, status, detail)
        VALUES ($1, $2, 'pending', '{}')`,
		orderID, "bench-customer")
	if err != nil {
		return Result{Status: "FAIL", Note: "seed: " + err.Error()}
	}

	start := time.Now()
	gate := make(chan struct{})
	codes := make(chan int, r.cfg.Drivers)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Drivers; i++ {
		driver := fmt.Sprintf("b14c0000-0000-4000-8000-%012d", i)
		wg.Add(1)
		go func(driver string) {
			defer wg.Done()
			<-gate
			code, err := r.postJSON(ctx,
				fmt.Sprintf("/api/orders/ride/%s/claim", orderID),
				map[string]any{"driver": driver}, nil)
			if err != nil {
				codes <- 0
				return
			}
			codes <- code
		}(driver)
	}
	close(gate)
	wg.Wait()
	close(codes)

	wins, conflicts, other := 0, 0, 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			wins++
		case http.StatusConflict:
			conflicts++
		default:
			other++
		}
	}
	note := fmt.Sprintf("wins=%d conflicts=%d other=%d", wins, conflicts, other)
	if wins != 1 || other != 0 {
		return Result{Status: "FAIL", Note: note}
	}
	return Result{Status: "PASS", Latency: time.Since(start), Note: note}
}

// runChatRoundTrip sends one message through the API while subscribed to the
// conversation topic, and expects both the realtime event and the history
// read to carry it.
func runChatRoundTrip(ctx context.Context, r *Runner) Result {
	if r.cfg.Token == "" {
		return Result{Status: "SKIP", Note: "no token"}
	}
	if r.redis == nil {
		return Result{Status: "FAIL", Note: "redis not configured"}
	}

	orderID := fmt.Sprintf("bench-chat-%d", time.Now().UnixNano())
	topic := "chat:ride:" + orderID
	ps := r.redis.Subscribe(ctx, topic)
	defer func() { _ = ps.Close() }()
	if _, err := ps.Receive(ctx); err != nil {
		return Result{Status: "FAIL", Note: "subscribe: " + err.Error()}
	}

	text := fmt.Sprintf("bench ping %d", time.Now().UnixNano())
	start := time.Now()
	code, err := r.postJSON(ctx,
		fmt.Sprintf("/api/orders/ride/%s/chat", orderID),
		map[string]any{"sender": "driver", "text": text}, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if code != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("send status %d", code)}
	}

	select {
	case msg := <-ps.Channel():
		if !strings.Contains(msg.Payload, text) {
			return Result{Status: "FAIL", Note: "event payload mismatch"}
		}
	case <-time.After(5 * time.Second):
		return Result{Status: "FAIL", Note: "no realtime event within 5s"}
	}

	var history struct {
		Messages []struct {
			Text string `json:"text"`
		} `json:"messages"`
	}
	if err := r.getJSON(ctx, fmt.Sprintf("/api/orders/ride/%s/chat", orderID), &history); err != nil {
		return Result{Status: "FAIL", Note: "history: " + err.Error()}
	}
	for _, m := range history.Messages {
		if m.Text == text {
			return Result{Status: "PASS", Latency: time.Since(start)}
		}
	}
	return Result{Status: "FAIL", Note: "message missing from history"}
}

func (r *Runner) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (r *Runner) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	resp, err := r.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *Runner) applyMigration(ctx context.Context) error {
	content, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(string(content)) {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(input string) []string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	parts := strings.Split(b.String(), ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

package visitor

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const userAgent = "gounsub/1.0"

// Policy controls how link visits are retried. It is immutable once
// constructed and safe to share across links.
type Policy struct {
	MaxAttempts       int           // total attempts per link
	BackoffFactor     time.Duration // wait before attempt n is BackoffFactor * 2^(n-1)
	RetryableStatuses map[int]bool
	Timeout           time.Duration // per-request
}

// NewPolicy builds a Policy from plain values.
func NewPolicy(maxAttempts int, backoffFactor, timeout time.Duration, retryable []int) Policy {
	set := make(map[int]bool, len(retryable))
	for _, code := range retryable {
		set[code] = true
	}
	return Policy{
		MaxAttempts:       maxAttempts,
		BackoffFactor:     backoffFactor,
		RetryableStatuses: set,
		Timeout:           timeout,
	}
}

// DefaultPolicy returns the stock retry policy: 3 attempts, 300ms backoff
// factor, retry on 429/500/502/503/504, 10 second request timeout.
func DefaultPolicy() Policy {
	return NewPolicy(3, 300*time.Millisecond, 10*time.Second, []int{429, 500, 502, 503, 504})
}

// backoff returns the wait after attempt n (1-based).
func (p Policy) backoff(n int) time.Duration {
	return p.BackoffFactor * time.Duration(1<<uint(n-1))
}

// Outcome is the final result of visiting one link.
type Outcome struct {
	Link       string
	StatusCode int   // 0 when the last attempt failed before a response
	Attempts   int   // attempts actually made
	Err        error // non-nil when the last attempt failed at the network level
}

// Success reports whether the link answered 200.
func (o Outcome) Success() bool {
	return o.Err == nil && o.StatusCode == http.StatusOK
}

// Visitor issues GET requests against unsubscribe links with bounded
// retries. One link's failure never affects the rest of the batch.
type Visitor struct {
	policy  Policy
	workers int
	client  *http.Client
	logger  *slog.Logger
}

// New creates a Visitor. workers bounds how many links are visited at
// once; 1 visits strictly in order.
func New(policy Policy, workers int, logger *slog.Logger) *Visitor {
	if workers < 1 {
		workers = 1
	}
	return &Visitor{
		policy:  policy,
		workers: workers,
		client:  &http.Client{Timeout: policy.Timeout},
		logger:  logger,
	}
}

// Visit requests every link and returns exactly one outcome per link, in
// input order.
func (v *Visitor) Visit(links []string) []Outcome {
	outcomes := make([]Outcome, len(links))

	if v.workers == 1 {
		for i, link := range links {
			outcomes[i] = v.visit(link)
		}
		return outcomes
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < v.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				outcomes[i] = v.visit(links[i])
			}
		}()
	}
	for i := range links {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return outcomes
}

// visit runs the retry loop for one link. Retries happen only on a network
// error or a retryable status; anything else, 200 included, is terminal.
func (v *Visitor) visit(link string) Outcome {
	out := Outcome{Link: link}

	req, err := http.NewRequest(http.MethodGet, link, nil)
	if err != nil {
		out.Err = err
		v.report(out)
		return out
	}
	req.Header.Set("User-Agent", userAgent)

	for attempt := 1; attempt <= v.policy.MaxAttempts; attempt++ {
		out.Attempts = attempt

		status, err := v.do(req)
		out.StatusCode = status
		out.Err = err

		if err == nil && !v.policy.RetryableStatuses[status] {
			break
		}
		if attempt < v.policy.MaxAttempts {
			time.Sleep(v.policy.backoff(attempt))
		}
	}

	v.report(out)
	return out
}

func (v *Visitor) do(req *http.Request) (int, error) {
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

// report logs a link's final outcome.
func (v *Visitor) report(out Outcome) {
	switch {
	case out.Success():
		v.logger.Info("unsubscribed", "link", out.Link, "attempts", out.Attempts)
	case out.Err != nil:
		v.logger.Error("unsubscribe request failed", "link", out.Link, "attempts", out.Attempts, "error", out.Err)
	default:
		v.logger.Warn("unsubscribe refused", "link", out.Link, "attempts", out.Attempts, "status", out.StatusCode)
	}
}

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"idempotency-gateway/internal/core/domain"
	"idempotency-gateway/internal/core/ports"
	"idempotency-gateway/internal/service"
	"idempotency-gateway/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrent_FirstTimeRequests verifies that when many requests bearing
// the same unseen key arrive at once, exactly one executes the operation and
// the rest are turned away with 202 instead of blocking.
func TestConcurrent_FirstTimeRequests(t *testing.T) {
	repo := newInMemoryRecordRepo()
	med := service.NewMediator(repo, newInMemoryTransactor(), nil, defaultTestConfig(), logger.New("error", false))

	concurrency := 10
	body := map[string]interface{}{"amount": float64(5000), "currency": "USD"}

	// The winner blocks inside the operation until all losers have been
	// answered, so no loser can observe a completed record.
	gate := make(chan struct{})
	var opCalls atomic.Int64
	var answered atomic.Int64

	op := func(ctx context.Context) (*ports.OpResult, error) {
		opCalls.Add(1)
		<-gate
		return &ports.OpResult{StatusCode: 201, Body: map[string]interface{}{"paymentId": "p-1"}}, nil
	}

	replies := make([]*ports.Reply, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			reply, err := med.Handle(context.Background(), "conc-key-1", body, op)
			assert.NoError(t, err)
			replies[idx] = reply
			answered.Add(1)
		}(i)
	}

	// Release the winner once the nine losers have their responses.
	deadline := time.After(5 * time.Second)
	for answered.Load() < int64(concurrency-1) {
		select {
		case <-deadline:
			t.Fatal("losers did not get non-blocking responses in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), opCalls.Load(), "operation must execute exactly once")

	var created, accepted int
	for _, reply := range replies {
		require.NotNil(t, reply)
		switch reply.StatusCode {
		case 201:
			created++
		case 202:
			accepted++
			assert.Equal(t, "PROCESSING", reply.ErrorCode)
		default:
			t.Fatalf("unexpected status %d", reply.StatusCode)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, concurrency-1, accepted)

	rec := repo.get("conc-key-1")
	require.NotNil(t, rec)
	assert.Equal(t, domain.StatusSuccess, rec.Status)
}

// TestConcurrent_ReplayBudget verifies the replay counter cannot be pushed
// past the cap by concurrent duplicates of a completed request.
func TestConcurrent_ReplayBudget(t *testing.T) {
	app := newTestApp(t, defaultTestConfig())
	defer app.close()

	resp, _ := app.postPayment(t, "conc-key-2", paymentBody(), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	concurrency := 10
	var replayed, refused atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _ := app.postPayment(t, "conc-key-2", paymentBody(), "")
			switch r.StatusCode {
			case http.StatusCreated:
				replayed.Add(1)
			case http.StatusTooManyRequests:
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), replayed.Load(), "exactly MaxReplays replays are served")
	assert.Equal(t, int64(concurrency-3), refused.Load())

	rec := app.repo.get("conc-key-2")
	require.NotNil(t, rec)
	assert.Equal(t, 3, rec.RetryCount, "counter must stop at the cap")
	assert.Equal(t, domain.StatusSuccess, rec.Status)
}

// TestConcurrent_UncappedReplays verifies that with the replay cap off,
// concurrent duplicates all receive the same stored response and the
// operation still runs only once.
func TestConcurrent_UncappedReplays(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ReplayBudgetCap = false
	app := newTestApp(t, cfg)
	defer app.close()

	resp, raw1 := app.postPayment(t, "conc-key-3", paymentBody(), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(raw1, &first))
	originalID := first["paymentId"]

	concurrency := 20
	var wg sync.WaitGroup
	ids := make([]interface{}, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			r, raw := app.postPayment(t, "conc-key-3", paymentBody(), "")
			assert.Equal(t, http.StatusCreated, r.StatusCode)
			var body map[string]interface{}
			if assert.NoError(t, json.Unmarshal(raw, &body)) {
				ids[idx] = body["paymentId"]
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, originalID, id, "every replay must carry the original payment")
	}
}

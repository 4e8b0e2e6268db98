package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string
	Checks map[string]string
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()

	var body statusBody
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = make(map[string]string)
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				s, err := d.Str()
				body.Checks[string(key)] = s
				return err
			})
		default:
			return d.Skip()
		}
	}))
	return body
}

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint_NoChecks(t *testing.T) {
	h := New()

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestLiveEndpoint_FailureThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck(Check{Name: "goroutines", Func: failing("too many")})
	c := h.liveness.list()[0]

	c.run(context.Background())
	c.run(context.Background())
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code, "below threshold")

	c.run(context.Background())
	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "too many", body.Checks["goroutines"])
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck(Check{Name: "erp", Func: passing()})

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestReadyEndpoint_StartUnhealthy(t *testing.T) {
	h := New()
	h.AddReadinessCheck(Check{Name: "erp", Func: passing(), StartUnhealthy: true})
	h.SetReady(true)

	w := serve(h.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "check has not passed yet", decodeStatus(t, w).Checks["erp"])

	h.readiness.list()[0].run(context.Background())
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
}

func TestReadyEndpoint_OneFailing(t *testing.T) {
	h := New()
	h.AddReadinessCheck(Check{Name: "documents", Func: passing()})
	h.AddReadinessCheck(Check{Name: "erp", Func: failing("connection refused"), FailureThreshold: 1})
	h.SetReady(true)

	h.readiness.list()[1].run(context.Background())

	body := decodeStatus(t, serve(h.ReadyEndpoint))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["erp"])
	assert.NotContains(t, body.Checks, "documents")
}

func TestCheckRecovery(t *testing.T) {
	down := true
	h := New()
	h.AddLivenessCheck(Check{
		Name:             "flaky",
		SuccessThreshold: 2,
		Func: func(context.Context) error {
			if down {
				return errors.New("down")
			}
			return nil
		},
	})
	c := h.liveness.list()[0]
	ctx := context.Background()

	for range 3 {
		c.run(ctx)
	}
	_, failed := c.failure()
	require.True(t, failed)

	down = false
	c.run(ctx)
	_, failed = c.failure()
	assert.True(t, failed, "one success is below the success threshold")

	c.run(ctx)
	_, failed = c.failure()
	assert.False(t, failed)
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck(Check{
		Name:             "slow",
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	c := h.readiness.list()[0]
	c.run(context.Background())

	msg, failed := c.failure()
	require.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck(Check{Name: "live", Func: passing()})
	h.AddReadinessCheck(Check{Name: "ready", Func: failing("no"), FailureThreshold: 1})
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck(Check{Name: "a", Func: failing("err")})
	h.AddReadinessCheck(Check{Name: "b", Func: passing()})
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				serve(h.LiveEndpoint)
				serve(h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestHeapLimitCheck(t *testing.T) {
	assert.NoError(t, HeapLimitCheck(1<<62)(context.Background()))
	assert.Error(t, HeapLimitCheck(1)(context.Background()))
}

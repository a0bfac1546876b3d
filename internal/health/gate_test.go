package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGate_Lifecycle(t *testing.T) {
	t.Parallel()

	g := NewGate("pipeline")
	if !errors.Is(g.Err(), ErrNotReady) {
		t.Fatalf("new gate Err() = %v, want ErrNotReady", g.Err())
	}
	g.Ready()
	if g.Err() != nil {
		t.Errorf("Err() after Ready = %v", g.Err())
	}
	closed := errors.New("engines closed")
	g.Fail(closed)
	if !errors.Is(g.Err(), closed) {
		t.Errorf("Err() after Fail = %v, want %v", g.Err(), closed)
	}
	g.Fail(nil)
	if !errors.Is(g.Err(), ErrNotReady) {
		t.Errorf("Fail(nil) Err() = %v, want ErrNotReady", g.Err())
	}
}

func TestGate_DrivesReadyz(t *testing.T) {
	t.Parallel()

	pipe := NewGate("pipeline")
	capt := NewGate("capture")
	h := New("", pipe.Checker(), capt.Checker())

	readyz := func() (int, result) {
		rec := httptest.NewRecorder()
		h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var body result
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return rec.Code, body
	}

	if code, body := readyz(); code != http.StatusServiceUnavailable || body.Checks["pipeline"] != "fail: not ready" {
		t.Errorf("before ready: %d %+v", code, body)
	}

	pipe.Ready()
	capt.Ready()
	if code, body := readyz(); code != http.StatusOK || body.Status != "ok" {
		t.Errorf("after ready: %d %+v", code, body)
	}
}

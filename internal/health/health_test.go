package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := New(func() bool { return true })

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["listening"] != true {
		t.Errorf("listening field = %v", body["listening"])
	}
}

func TestReadyz_AllProbesPass(t *testing.T) {
	t.Parallel()

	h := New(nil,
		Probe{Name: "storage", Check: func(context.Context) error { return nil }},
		Probe{Name: "bridge", Check: func(context.Context) error { return nil }},
	)

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode(t, rr)
	probes := body["probes"].(map[string]any)
	if probes["storage"] != "ok" || probes["bridge"] != "ok" {
		t.Errorf("probes = %v", probes)
	}
}

func TestReadyz_FailingProbe(t *testing.T) {
	t.Parallel()

	h := New(nil,
		Probe{Name: "storage", Check: func(context.Context) error { return errors.New("kv down") }},
	)

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	body := decode(t, rr)
	if body["status"] != "fail" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	New(func() bool { return false }).Register(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, res.StatusCode)
		}
	}
}

func TestKVProbe(t *testing.T) {
	t.Parallel()

	called := false
	p := KVProbe("storage", func(context.Context) error {
		called = true
		return nil
	})
	if p.Name != "storage" {
		t.Errorf("Name = %q", p.Name)
	}
	if err := p.Check(context.Background()); err != nil || !called {
		t.Errorf("Check: err=%v called=%v", err, called)
	}
}

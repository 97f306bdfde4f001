package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tetherlab/tether/core/component"
	"github.com/tetherlab/tether/core/executor"
	"github.com/tetherlab/tether/core/fault"
	"github.com/tetherlab/tether/core/protocol"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	d := component.NewDescriptor("Clock", component.KindComponent)
	err := d.AddClassProperty(component.Property{
		Name: "now", Kind: component.PropMethod, Exposure: component.Exposure{Call: true},
	})
	if err != nil {
		t.Fatalf("AddClassProperty failed: %v", err)
	}
	comp := component.NewComponent(d)
	err = comp.BindClassMethod("now", func(_ context.Context, _ []any) (any, error) {
		return "tick", nil
	})
	if err != nil {
		t.Fatalf("BindClassMethod failed: %v", err)
	}
	set, err := component.NewSet(comp)
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}

	collector := NewCollector(prometheus.NewRegistry())
	return NewHandler(executor.New(set), zerolog.Nop(), collector)
}

func postQuery(t *testing.T, router http.Handler, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpoint(t *testing.T) {
	router := testHandler(t).Router()

	rec := postQuery(t, router, &protocol.Request{
		Version: protocol.Version,
		Query:   protocol.NewInvoke(map[string]any{"__class": "Clock"}, "now", nil),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp protocol.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Result != "tick" {
		t.Errorf("result = %v, want tick", resp.Result)
	}
}

func TestQueryEndpointIntrospect(t *testing.T) {
	router := testHandler(t).Router()

	rec := postQuery(t, router, &protocol.Request{
		Version: protocol.Version,
		Query:   protocol.NewIntrospect(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"Clock"`) {
		t.Errorf("introspection body = %s", rec.Body.String())
	}
}

func TestQueryEndpointErrorsStayHTTP200(t *testing.T) {
	router := testHandler(t).Router()

	// Protocol-level failures travel in the payload, not the status line.
	rec := postQuery(t, router, &protocol.Request{
		Version: 99,
		Query:   protocol.NewIntrospect(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp protocol.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	m, ok := resp.Result.(map[string]any)
	if !ok || m["code"] != fault.CodeVersionMismatch {
		t.Errorf("result = %v, want version mismatch payload", resp.Result)
	}
}

func TestQueryEndpointMalformedBody(t *testing.T) {
	router := testHandler(t).Router()

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), fault.CodeDeserialization) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := testHandler(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestQueryKindLabel(t *testing.T) {
	tests := []struct {
		name string
		q    map[string]any
		want string
	}{
		{"introspect", protocol.NewIntrospect(), "introspect"},
		{"invoke", protocol.NewInvoke("x", "find", nil), "invoke"},
		{"garbage", map[string]any{"what": 1}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queryKind(tt.q); got != tt.want {
				t.Errorf("queryKind = %q, want %q", got, tt.want)
			}
		})
	}
}

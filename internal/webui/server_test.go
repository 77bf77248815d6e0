package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"flap/internal/content"
	"flap/internal/store"
)

type fakeCircuits struct {
	rows   map[string]*store.CircuitState
	sets   []string
	resets []string
}

func newFakeCircuits() *fakeCircuits {
	return &fakeCircuits{rows: map[string]*store.CircuitState{
		"kill_switch_ai":  {CircuitID: "kill_switch_ai", CircuitType: store.CircuitTypeManual, State: store.StateOn},
		"provider:openai": {CircuitID: "provider:openai", CircuitType: store.CircuitTypeProvider, State: store.StateOff},
	}}
}

func (f *fakeCircuits) AllCircuits(context.Context) []store.CircuitState {
	out := make([]store.CircuitState, 0, len(f.rows))
	for _, cs := range f.rows {
		out = append(out, *cs)
	}
	return out
}

func (f *fakeCircuits) CircuitStatus(_ context.Context, id string) *store.CircuitState {
	return f.rows[id]
}

func (f *fakeCircuits) SetState(_ context.Context, id string, state store.State) {
	f.sets = append(f.sets, id+"="+string(state))
	if cs, ok := f.rows[id]; ok {
		cs.State = state
	}
}

func (f *fakeCircuits) ResetProviderCircuit(_ context.Context, id string) {
	f.resets = append(f.resets, id)
}

type fakeContent struct {
	cached  *content.GeneratedContent
	lastCtx content.GenerationContext
	err     error
}

func (f *fakeContent) GenerateAndSend(_ context.Context, genCtx content.GenerationContext) (*content.GeneratedContent, error) {
	f.lastCtx = genCtx
	if f.err != nil {
		return nil, f.err
	}
	return &content.GeneratedContent{Text: "FRESH", OutputMode: content.ModeText}, nil
}

func (f *fakeContent) CachedContent() *content.GeneratedContent {
	return f.cached
}

func newTestServer(circuits *fakeCircuits, contentSvc *fakeContent) *httptest.Server {
	s := NewServer(Config{Addr: ":0"}, circuits, contentSvc)
	return httptest.NewServer(s.Handler())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(newFakeCircuits(), &fakeContent{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestListAndGetCircuits(t *testing.T) {
	ts := newTestServer(newFakeCircuits(), &fakeContent{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/circuits")
	if err != nil {
		t.Fatalf("GET /api/circuits: %v", err)
	}
	defer resp.Body.Close()
	var list struct {
		Circuits []store.CircuitState `json:"circuits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Circuits) != 2 {
		t.Errorf("circuits = %+v", list.Circuits)
	}

	missing, err := http.Get(ts.URL + "/api/circuits/ghost")
	if err != nil {
		t.Fatalf("GET missing circuit: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing circuit status = %d", missing.StatusCode)
	}
}

func TestSetCircuitState(t *testing.T) {
	circuits := newFakeCircuits()
	ts := newTestServer(circuits, &fakeContent{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/circuits/kill_switch_ai/state", "application/json",
		strings.NewReader(`{"state":"off"}`))
	if err != nil {
		t.Fatalf("POST state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(circuits.sets) != 1 || circuits.sets[0] != "kill_switch_ai=off" {
		t.Errorf("sets = %v", circuits.sets)
	}

	bad, err := http.Post(ts.URL+"/api/circuits/kill_switch_ai/state", "application/json",
		strings.NewReader(`{"state":"sideways"}`))
	if err != nil {
		t.Fatalf("POST bad state: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad state status = %d", bad.StatusCode)
	}
}

func TestResetCircuit(t *testing.T) {
	circuits := newFakeCircuits()
	ts := newTestServer(circuits, &fakeContent{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/circuits/provider:openai/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(circuits.resets) != 1 {
		t.Errorf("status = %d, resets = %v", resp.StatusCode, circuits.resets)
	}
}

func TestGetContent(t *testing.T) {
	contentSvc := &fakeContent{}
	ts := newTestServer(newFakeCircuits(), contentSvc)
	defer ts.Close()

	empty, err := http.Get(ts.URL + "/api/content")
	if err != nil {
		t.Fatalf("GET /api/content: %v", err)
	}
	empty.Body.Close()
	if empty.StatusCode != http.StatusNotFound {
		t.Errorf("empty cache status = %d", empty.StatusCode)
	}

	contentSvc.cached = &content.GeneratedContent{Text: "CACHED", OutputMode: content.ModeText}
	resp, err := http.Get(ts.URL + "/api/content")
	if err != nil {
		t.Fatalf("GET /api/content: %v", err)
	}
	defer resp.Body.Close()
	var got content.GeneratedContent
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Text != "CACHED" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	contentSvc := &fakeContent{}
	ts := newTestServer(newFakeCircuits(), contentSvc)
	defer ts.Close()

	body, _ := json.Marshal(generateRequest{GeneratorID: "daily", UseTools: true})
	resp, err := http.Post(ts.URL+"/api/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/generate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if contentSvc.lastCtx.GeneratorID != "daily" || !contentSvc.lastCtx.UseToolGeneration {
		t.Errorf("genCtx = %+v", contentSvc.lastCtx)
	}

	contentSvc.err = content.ErrDisabled
	disabled, err := http.Post(ts.URL+"/api/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST disabled: %v", err)
	}
	disabled.Body.Close()
	if disabled.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d", disabled.StatusCode)
	}
}

func TestWebSocketFrameFeed(t *testing.T) {
	circuits := newFakeCircuits()
	contentSvc := &fakeContent{}
	s := NewServer(Config{Addr: ":0"}, circuits, contentSvc)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.OnFrame([][]int{{1, 2, 3}}, &content.GeneratedContent{Text: "HI", OutputMode: content.ModeText})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event FrameEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if event.Content == nil || event.Content.Text != "HI" || len(event.Layout) != 1 {
		t.Errorf("event = %+v", event)
	}
}

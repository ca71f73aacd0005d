package octo

import (
	"io"
	"sync"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

// handlerFunc answers one request. A non-empty errMsg is sent as the
// engine error.
type handlerFunc func(op string, body msgpack.RawMessage) (result any, errMsg string)

type fakeRequest struct {
	Op   string             `msgpack:"op"`
	Seq  uint64             `msgpack:"seq"`
	Body msgpack.RawMessage `msgpack:"body"`
}

type fakeResponse struct {
	Seq   uint64 `msgpack:"seq"`
	Error string `msgpack:"error,omitempty"`
	Body  any    `msgpack:"body,omitempty"`
}

// fakeEngine serves the worker protocol in-process over pipes and records
// the operations it saw.
type fakeEngine struct {
	mu  sync.Mutex
	ops []string
}

func (f *fakeEngine) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func startFake(t *testing.T, handle handlerFunc) (*Worker, *fakeEngine) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	f := &fakeEngine{}

	go func() {
		defer respW.Close()
		for {
			var req fakeRequest
			if err := readFrame(reqR, &req); err != nil {
				return
			}
			f.mu.Lock()
			f.ops = append(f.ops, req.Op)
			f.mu.Unlock()

			result, errMsg := handle(req.Op, req.Body)
			if err := writeFrame(respW, fakeResponse{Seq: req.Seq, Error: errMsg, Body: result}); err != nil {
				return
			}
		}
	}()

	w := NewWorker("fake", reqW, respR)
	t.Cleanup(func() { _ = w.Close() })
	return w, f
}

func decodeBody[T any](t *testing.T, raw msgpack.RawMessage) T {
	t.Helper()
	var v T
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		t.Errorf("decode request body: %v", err)
	}
	return v
}

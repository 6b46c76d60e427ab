package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/logger"
)

type echoParams struct {
	Text string `json:"text"`
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer()
	s.Register("Echo.Say", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p echoParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "bad params")
		}
		return map[string]string{"text": p.Text, "request_id": logger.RequestID(ctx)}, nil
	})
	s.Register("Echo.Fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("disk on fire")
	})
	s.Register("Echo.Panic", func(context.Context, json.RawMessage) (any, error) {
		panic("unexpected")
	})
	if err := s.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	go s.Serve()
	t.Cleanup(s.Stop)
	return s
}

func dial(t *testing.T, s *Server) *Client {
	t.Helper()
	c, err := Dial(context.Background(), s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCallRoundTrip(t *testing.T) {
	s := startServer(t)
	c := dial(t, s)

	ctx := logger.WithRequestID(context.Background(), "req-9")
	var got map[string]string
	if err := c.Call(ctx, "Echo.Say", echoParams{Text: "a-na"}, &got); err != nil {
		t.Fatal(err)
	}
	if got["text"] != "a-na" || got["request_id"] != "req-9" {
		t.Errorf("response = %v", got)
	}
	if s.MethodCount() != 3 {
		t.Errorf("MethodCount() = %d", s.MethodCount())
	}
}

func TestRemoteErrors(t *testing.T) {
	s := startServer(t)
	c := dial(t, s)
	tests := []struct {
		method  string
		params  any
		code    int
		message string
	}{
		{"Echo.Missing", nil, 404, "unknown method: Echo.Missing"},
		{"Echo.Say", "not an object", http.StatusBadRequest, "bad params"},
		{"Echo.Fail", nil, http.StatusInternalServerError, "search failed"},
		{"Echo.Panic", nil, http.StatusInternalServerError, "search failed"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			err := c.Call(context.Background(), tt.method, tt.params, nil)
			var remote *RemoteError
			if !errors.As(err, &remote) {
				t.Fatalf("error = %v, want RemoteError", err)
			}
			if remote.Code != tt.code || remote.Message != tt.message {
				t.Errorf("remote error = %+v", remote)
			}
		})
	}
	var got map[string]string
	if err := c.Call(context.Background(), "Echo.Say", echoParams{Text: "still open"}, &got); err != nil {
		t.Fatalf("connection unusable after errors: %v", err)
	}
}

func TestStopClosesConnections(t *testing.T) {
	s := NewServer()
	if err := s.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- s.Serve() }()
	c, err := Dial(context.Background(), s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	s.Stop()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Call(ctx, "Echo.Say", echoParams{}, nil); err == nil {
		t.Error("call on a stopped server succeeded")
	}
}

func TestServeBeforeListen(t *testing.T) {
	if err := NewServer().Serve(); err == nil {
		t.Error("expected an error")
	}
}

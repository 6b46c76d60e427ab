package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"starting up", &pq.Error{Code: "57P03"}, true},
		{"connection failure", fmt.Errorf("pinging postgres: %w", &pq.Error{Code: "08006"}), true},
		{"bad password", fmt.Errorf("pinging postgres: %w", &pq.Error{Code: "28P01"}), false},
		{"missing database", &pq.Error{Code: "3D000"}, false},
		{"no privilege", &pq.Error{Code: "42501"}, false},
		{"rejected connection", &pq.Error{Code: "08004"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

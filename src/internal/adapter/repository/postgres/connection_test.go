package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolOptionsNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   PoolOptions
		want PoolOptions
	}{
		{name: "zero value uses defaults", in: PoolOptions{}, want: DefaultPoolOptions()},
		{
			name: "idle capped at open",
			in:   PoolOptions{MaxOpenConns: 4, MaxIdleConns: 12},
			want: PoolOptions{MaxOpenConns: 4, MaxIdleConns: 4, ConnMaxIdleTime: 5 * time.Minute, ConnMaxLifetime: 15 * time.Minute},
		},
		{
			name: "explicit values kept",
			in:   PoolOptions{MaxOpenConns: 50, MaxIdleConns: 5, ConnMaxIdleTime: time.Minute, ConnMaxLifetime: time.Hour},
			want: PoolOptions{MaxOpenConns: 50, MaxIdleConns: 5, ConnMaxIdleTime: time.Minute, ConnMaxLifetime: time.Hour},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.normalized())
		})
	}
}

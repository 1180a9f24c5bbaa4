package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/creco/imaikura/pkg/config"
	"github.com/creco/imaikura/pkg/logger"
)

func TestWriteTimeoutCoversRateFetch(t *testing.T) {
	tests := []struct {
		name  string
		fetch time.Duration
		want  time.Duration
	}{
		{"default fetch", 20 * time.Second, 30 * time.Second},
		{"short fetch", 5 * time.Second, 30 * time.Second},
		{"long fetch", 45 * time.Second, 55 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Port: "0", Rates: config.RatesConfig{FetchTimeout: tt.fetch}}

			srv := New(cfg, logger.Nop(), nil)

			assert.Equal(t, tt.want, srv.httpServer.WriteTimeout)
			assert.Greater(t, srv.httpServer.WriteTimeout, tt.fetch)
		})
	}
}

package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suborbital/zsbind/options"
)

func TestSetupTracing(t *testing.T) {
	half := 0.5

	tests := []struct {
		name    string
		config  options.TracerConfig
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "none",
			config:  options.TracerConfig{TracerType: "none", ServiceName: "zsbind", Probability: &half},
			wantErr: assert.NoError,
		},
		{
			name:    "empty type",
			config:  options.TracerConfig{},
			wantErr: assert.NoError,
		},
		{
			name:    "unknown type falls back to no tracer",
			config:  options.TracerConfig{TracerType: "honeycomb"},
			wantErr: assert.NoError,
		},
		{
			name:    "collector without endpoint",
			config:  options.TracerConfig{TracerType: "collector", ServiceName: "zsbind", Probability: &half},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := SetupTracing(tt.config, zerolog.Nop())
			tt.wantErr(t, err)

			if err != nil {
				assert.Nil(t, tp)
				return
			}

			require.NotNil(t, tp)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			// nothing was recorded, so there is nothing to export
			_ = tp.Shutdown(ctx)
		})
	}
}

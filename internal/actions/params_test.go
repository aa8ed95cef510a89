package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationParam(t *testing.T) {
	const def = 7 * time.Second
	tests := []struct {
		name string
		in   any
		want time.Duration
	}{
		{"absent", nil, def},
		{"int seconds", 3, 3 * time.Second},
		{"int64 seconds", int64(4), 4 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"duration string", "250ms", 250 * time.Millisecond},
		{"numeric string", "2", 2 * time.Second},
		{"garbage", "soon", def},
		{"zero", 0, def},
		{"zero string", "0s", def},
		{"negative", -5, def},
		{"negative string", "-1m", def},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := map[string]any{}
			if tc.in != nil {
				params["timeout"] = tc.in
			}
			assert.Equal(t, tc.want, durationParam(params, "timeout", def))
		})
	}
}

func TestShell_ZeroTimeoutUsesDefault(t *testing.T) {
	res, err := (&Shell{Timeout: 5 * time.Second}).Execute(context.Background(), invoke("shell", map[string]any{
		"command": "echo ok",
		"timeout": 0,
	}))
	require.NoError(t, err)
	assert.Equal(t, "ok\n", res.Output.(map[string]any)["stdout"])
}

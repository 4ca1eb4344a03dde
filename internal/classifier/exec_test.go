package classifier

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellBackend runs script under sh; the classified text arrives as $0.
func shellBackend(t *testing.T, script string) *execBackend {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	b, err := newExecBackend(Config{Command: "sh", Args: []string{"-c", script}, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return b
}

func TestExecBackend_Classify(t *testing.T) {
	b := shellBackend(t, `echo "Loading model from ./models"; printf '{"model_type":"DistilBERT","predicted_category":"%s","transaction_type":"P2C","intent":"purchase","confidence":{"category":0.9}}\n' "$0"`)

	prediction, err := b.Classify(context.Background(), "Dining / Cafes")
	require.NoError(t, err)
	assert.Equal(t, "Dining / Cafes", prediction.Category)
	assert.Equal(t, "DistilBERT", prediction.ModelType)
	assert.Equal(t, "purchase", prediction.Intent)
	assert.InDelta(t, 0.9, prediction.Confidence["category"], 1e-9)
}

func TestExecBackend_Failures(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		message string
	}{
		{
			name:    "error object with non-zero exit",
			script:  `echo '{"error":"Model not found","predicted_category":"Uncategorized"}'; exit 1`,
			message: "Model not found",
		},
		{
			name:    "stderr only",
			script:  `echo "ModuleNotFoundError: torch" >&2; exit 3`,
			message: "ModuleNotFoundError: torch",
		},
		{
			name:    "no json",
			script:  `echo ok`,
			message: "no JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shellBackend(t, tt.script).Classify(context.Background(), "X")
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrClassificationFailed)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestExecBackend_Timeout(t *testing.T) {
	b := shellBackend(t, `sleep 5`)
	b.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := b.Classify(context.Background(), "X")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
	assert.Less(t, time.Since(start), 4*time.Second)
}

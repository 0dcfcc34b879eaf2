package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert-telegram-bot/internal/types"
)

func TestValidateTicker(t *testing.T) {
	t.Run("uppercases clean input", func(t *testing.T) {
		ticker, err := ValidateTicker("aapl")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", ticker)
	})

	t.Run("rejects illegal characters", func(t *testing.T) {
		for _, input := range []string{"BRK.B", "AAPL,MSFT", "AA PL", "."} {
			_, err := ValidateTicker(input)
			require.Error(t, err, input)

			var verr *types.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "ticker symbol", verr.Category)
			assert.Equal(t, "an illegal character", verr.Reason)
		}
	})
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		referenceClose float64
		want           types.Target
		wantErr        bool
	}{
		{
			name:  "absolute price",
			input: "130.02",
			want:  types.Target{Kind: types.TargetAbsolute, Value: 130.02},
		},
		{
			name:  "absolute price rounds to 2 decimals",
			input: "130.025",
			want:  types.Target{Kind: types.TargetAbsolute, Value: 130.03},
		},
		{
			name:           "positive percent offset",
			input:          "10%",
			referenceClose: 100.00,
			want:           types.Target{Kind: types.TargetAbsolute, Value: 110.00},
		},
		{
			name:           "negative percent offset",
			input:          "-5.5%",
			referenceClose: 100.00,
			want:           types.Target{Kind: types.TargetAbsolute, Value: 94.50},
		},
		{
			name:  "moving average",
			input: "MA100",
			want:  types.Target{Kind: types.TargetMovingAverage, Window: 100},
		},
		{
			name:    "zero moving average window",
			input:   "MA0",
			wantErr: true,
		},
		{
			name:    "lowercase ma prefix",
			input:   "ma100",
			wantErr: true,
		},
		{
			name:    "moving average without digits",
			input:   "MA",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "abc",
			wantErr: true,
		},
		{
			name:    "signed absolute price",
			input:   "-130.02",
			wantErr: true,
		},
		{
			name:    "two decimal points",
			input:   "130.0.2",
			wantErr: true,
		},
		{
			name:    "lone percent sign",
			input:   "%",
			wantErr: true,
		},
		{
			name:    "double negative percent",
			input:   "--5%",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := ParseTarget(tt.input, tt.referenceClose)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, target)
		})
	}

	t.Run("malformed level reports the wrong price input reason", func(t *testing.T) {
		_, err := ParseTarget("abc", 100)
		var verr *types.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "alert level", verr.Category)
		assert.Equal(t, "a wrong price input", verr.Reason)
	})
}

func TestParseStoredTarget(t *testing.T) {
	t.Run("round trips an absolute target", func(t *testing.T) {
		parsed, err := ParseTarget("130.02", 0)
		require.NoError(t, err)

		stored, err := ParseStoredTarget(parsed.Expression())
		require.NoError(t, err)
		assert.Equal(t, parsed, stored)
	})

	t.Run("round trips a moving average target", func(t *testing.T) {
		parsed, err := ParseTarget("MA100", 0)
		require.NoError(t, err)
		assert.Equal(t, "MA100", parsed.Expression())

		stored, err := ParseStoredTarget("MA100")
		require.NoError(t, err)
		assert.Equal(t, parsed, stored)
	})

	t.Run("percent offsets are stored resolved", func(t *testing.T) {
		parsed, err := ParseTarget("10%", 100.00)
		require.NoError(t, err)
		assert.Equal(t, "110.00", parsed.Expression())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseStoredTarget("MAabc")
		require.Error(t, err)
	})
}

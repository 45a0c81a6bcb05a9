package events

import (
	"testing"

	"mint-sniper/agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	jupMint  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

func TestExtractMint(t *testing.T) {
	tests := []struct {
		name   string
		msg    models.Message
		want   string
		wantOK bool
	}{
		{
			name:   "bare mint in text",
			msg:    models.Message{Text: "🔥 new call " + bonkMint + " lfg"},
			want:   bonkMint,
			wantOK: true,
		},
		{
			name:   "marketing suffix stripped",
			msg:    models.Message{Text: "🔥 CA: " + bonkMint + ".PUMP"},
			want:   bonkMint,
			wantOK: true,
		},
		{
			name:   "zero width characters and newlines",
			msg:    models.Message{Text: "📈\u200b\n" + usdcMint + "\ufeff\t"},
			want:   usdcMint,
			wantOK: true,
		},
		{
			name:   "mint behind text link entity",
			msg:    models.Message{Text: "🔥 chart", EntityURLs: []string{"https://dexscreener.com/solana/" + jupMint}},
			want:   jupMint,
			wantOK: true,
		},
		{
			name:   "bot start param deep link",
			msg:    models.Message{Text: "🔥 buy https://t.me/soul_sniper_bot?start=ref_" + usdcMint},
			want:   usdcMint,
			wantOK: true,
		},
		{
			name: "button url only",
			msg: models.Message{
				Text:       "🔥 hot one",
				ButtonURLs: [][]string{{""}, {"https://jup.ag/swap/SOL-" + jupMint}},
			},
			want:   jupMint,
			wantOK: true,
		},
		{
			name: "free text wins over buttons",
			msg: models.Message{
				Text:       "🔥 " + bonkMint,
				ButtonURLs: [][]string{{"https://pump.fun/coin/" + usdcMint}},
			},
			want:   bonkMint,
			wantOK: true,
		},
		{
			name:   "first valid candidate in text order",
			msg:    models.Message{Text: usdcMint + " then " + bonkMint},
			want:   usdcMint,
			wantOK: true,
		},
		{
			name:   "native sol is skipped",
			msg:    models.Message{Text: solMintAddress + " / " + bonkMint},
			want:   bonkMint,
			wantOK: true,
		},
		{
			name:   "too short",
			msg:    models.Message{Text: "🔥 abc123 DezXAZ8z7PnrnRJjz3wXBoRgix"},
			wantOK: false,
		},
		{
			name:   "invalid alphabet",
			msg:    models.Message{Text: "🔥 0OIlDezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1"},
			wantOK: false,
		},
		{
			name:   "pattern shaped but not a 32 byte key",
			msg:    models.Message{Text: "🔥 1111111111111111111111111111111111111111"},
			wantOK: false,
		},
		{
			name:   "over-long deep link segment is not truncated",
			msg:    models.Message{Text: "🔥 https://pump.fun/coin/" + bonkMint + "pump"},
			wantOK: false,
		},
		{
			name: "over-long button segment is not truncated",
			msg: models.Message{
				Text:       "🔥 chart below",
				ButtonURLs: [][]string{{"https://dexscreener.com/solana/" + bonkMint + "xyz"}},
			},
			wantOK: false,
		},
		{
			name:   "deep link segment ending at a query string",
			msg:    models.Message{EntityURLs: []string{"https://birdeye.so/token/" + usdcMint + "?chain=solana"}},
			want:   usdcMint,
			wantOK: true,
		},
		{
			name:   "empty message",
			msg:    models.Message{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractMint(tt.msg)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.GreaterOrEqual(t, len(got), minMintLength)
				assert.LessOrEqual(t, len(got), maxMintLength)
				assert.Regexp(t, mintAlphabet, got)
			}
		})
	}
}

func TestCleanMint(t *testing.T) {
	assert.Equal(t, bonkMint, CleanMint(bonkMint+".pump"))
	assert.Equal(t, bonkMint, CleanMint(bonkMint+".Bonk"))
	assert.Equal(t, bonkMint+".xyz", CleanMint(bonkMint+".xyz"))
	assert.Equal(t, bonkMint, CleanMint(bonkMint))
}

func TestValidateMint(t *testing.T) {
	mint, ok := ValidateMint(" " + usdcMint + ".moon ")
	require.True(t, ok)
	assert.Equal(t, usdcMint, mint)

	_, ok = ValidateMint(usdcMint + "x")
	assert.False(t, ok)
}

func TestHasTriggerPrefix(t *testing.T) {
	prefixes := []string{"🔥", "📈"}
	assert.True(t, HasTriggerPrefix("  🔥 call", prefixes))
	assert.True(t, HasTriggerPrefix("📈 up 40%", prefixes))
	assert.False(t, HasTriggerPrefix("gm "+bonkMint, prefixes))
	assert.True(t, HasTriggerPrefix("anything", nil))
}

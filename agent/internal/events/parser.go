package events

import (
	"regexp"
	"strings"

	"mint-sniper/agent/internal/models"

	"github.com/mr-tron/base58"
)

// solMintAddress represents the mint address for native SOL.
const solMintAddress = "So11111111111111111111111111111111111111112"

const (
	minMintLength = 32
	maxMintLength = 44
	mintKeyBytes  = 32

	base58Class = `[1-9A-HJ-NP-Za-km-z]`
)

// marketingSuffixes are appended to mints by launchpads and shill channels.
var marketingSuffixes = []string{
	"pump", "bonk", "bot", "moon", "cat", "dog", "shib", "pepe", "wojak", "based", "rekt",
}

var (
	suffixGroup = `(?i:\.(?:` + strings.Join(marketingSuffixes, "|") + `))?`

	// rawMintPattern finds bare mints in free text, with an optional marketing suffix.
	rawMintPattern = regexp.MustCompile(`\b(` + base58Class + `{32,44}` + suffixGroup + `)\b`)

	// buttonMintPattern has no word boundaries: button URLs glue mints to `_` and `-`.
	// Runs are matched whole so an over-long segment is rejected, never truncated.
	buttonMintPattern = regexp.MustCompile(base58Class + `+`)

	// deepLinkPatterns recover mints embedded as URL path segments or bot start params.
	// Captures take the whole base58 run; length is checked by ValidateMint.
	deepLinkPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i:t\.me/\w+\?start=)[^_\s]*_(` + base58Class + `+)`),
		regexp.MustCompile(`(?i:dexscreener\.com/solana/)(` + base58Class + `+)`),
		regexp.MustCompile(`(?i:pump\.fun/(?:coin/)?)(` + base58Class + `+)`),
		regexp.MustCompile(`(?i:birdeye\.so/token/)(` + base58Class + `+)`),
		regexp.MustCompile(`(?i:gmgn\.ai/sol/token/)(?:\w+_)?(` + base58Class + `+)`),
	}

	mintAlphabet = regexp.MustCompile(`^` + base58Class + `+$`)

	invisibleChars = strings.NewReplacer(
		"\u200B", " ", "\u200C", " ", "\u200D", " ", "\uFEFF", " ",
		"\r", " ", "\n", " ", "\t", " ",
	)
)

// ExtractMint returns the first structurally valid mint found in msg.
// Sources are scanned in order: free text (body, then text_link URLs),
// known deep-link templates, then inline button URLs.
func ExtractMint(msg models.Message) (string, bool) {
	parts := make([]string, 0, 1+len(msg.EntityURLs))
	parts = append(parts, msg.Text)
	parts = append(parts, msg.EntityURLs...)
	fullText := normalizeText(strings.Join(parts, " "))

	for _, m := range rawMintPattern.FindAllStringSubmatch(fullText, -1) {
		if mint, ok := ValidateMint(m[1]); ok {
			return mint, true
		}
	}

	for _, p := range deepLinkPatterns {
		for _, m := range p.FindAllStringSubmatch(fullText, -1) {
			if mint, ok := ValidateMint(m[1]); ok {
				return mint, true
			}
		}
	}

	for _, row := range msg.ButtonURLs {
		for _, url := range row {
			for _, candidate := range buttonMintPattern.FindAllString(url, -1) {
				if mint, ok := ValidateMint(candidate); ok {
					return mint, true
				}
			}
		}
	}

	return "", false
}

// ValidateMint strips a marketing suffix and checks the result is a mint:
// 32-44 base58 characters decoding to a 32-byte key. Native SOL is never a candidate.
func ValidateMint(candidate string) (string, bool) {
	mint := CleanMint(strings.TrimSpace(candidate))
	if len(mint) < minMintLength || len(mint) > maxMintLength {
		return "", false
	}
	if !mintAlphabet.MatchString(mint) {
		return "", false
	}
	decoded, err := base58.Decode(mint)
	if err != nil || len(decoded) != mintKeyBytes {
		return "", false
	}
	if mint == solMintAddress {
		return "", false
	}
	return mint, true
}

// CleanMint removes one trailing marketing suffix such as ".pump" (case-insensitive).
func CleanMint(mint string) string {
	dot := strings.LastIndexByte(mint, '.')
	if dot < 0 {
		return mint
	}
	suffix := strings.ToLower(mint[dot+1:])
	for _, s := range marketingSuffixes {
		if suffix == s {
			return mint[:dot]
		}
	}
	return mint
}

// HasTriggerPrefix reports whether text opens with one of the channel's alert
// markers. An empty prefix list accepts everything.
func HasTriggerPrefix(text string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	trimmed := strings.TrimSpace(text)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(invisibleChars.Replace(s)), " ")
}

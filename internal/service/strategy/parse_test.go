package strategy

import (
	"strings"
	"testing"
	"unicode/utf8"

	"alphabot/internal/domain/models"
)

func TestParseResponseWellFormed(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))
	sig := parseResponse("ACTION: SELL\nPRICE: 3425.00\nCONFIDENCE: 65\nREASONING: Bearish", snap)

	if sig.Action != models.ActionSell {
		t.Fatalf("action = %s", sig.Action)
	}
	if sig.PredictedPrice != 3425 {
		t.Fatalf("price = %v", sig.PredictedPrice)
	}
	if sig.Confidence != 0.65 {
		t.Fatalf("confidence = %v", sig.Confidence)
	}
	if sig.Reasoning != "Bearish" {
		t.Fatalf("reasoning = %q", sig.Reasoning)
	}
	if sig.Timestamp != snap.Timestamp {
		t.Fatalf("timestamp = %d", sig.Timestamp)
	}
}

func TestParseResponseDefaults(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))
	sig := parseResponse("The market looks uncertain today.", snap)

	if sig.Action != models.ActionHold {
		t.Fatalf("action = %s, want HOLD default", sig.Action)
	}
	if sig.PredictedPrice != 3500 {
		t.Fatalf("price = %v, want current price default", sig.PredictedPrice)
	}
	if sig.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5 default", sig.Confidence)
	}
	if sig.Reasoning != "No reasoning provided" {
		t.Fatalf("reasoning = %q", sig.Reasoning)
	}
}

func TestParseResponseLastMatchWins(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))
	content := "ACTION: BUY\nPRICE: 3600\nLet me reconsider.\nACTION: SELL\nPRICE: 3400"
	sig := parseResponse(content, snap)

	if sig.Action != models.ActionSell {
		t.Fatalf("action = %s, want last SELL", sig.Action)
	}
	if sig.PredictedPrice != 3400 {
		t.Fatalf("price = %v, want last 3400", sig.PredictedPrice)
	}
}

func TestParseResponseActionBySubstring(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))

	if sig := parseResponse("ACTION: I would buy here", snap); sig.Action != models.ActionBuy {
		t.Fatalf("substring buy: got %s", sig.Action)
	}
	if sig := parseResponse("ACTION: leaning to sell", snap); sig.Action != models.ActionSell {
		t.Fatalf("substring sell: got %s", sig.Action)
	}
	if sig := parseResponse("ACTION: wait and see", snap); sig.Action != models.ActionHold {
		t.Fatalf("no keyword: got %s", sig.Action)
	}
}

func TestParseResponsePriceStripping(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))

	if sig := parseResponse("PRICE: $3,575.50", snap); sig.PredictedPrice != 3575.50 {
		t.Fatalf("stripped price = %v", sig.PredictedPrice)
	}
	// Unparsable and non-positive values keep the default.
	if sig := parseResponse("PRICE: around four grand", snap); sig.PredictedPrice != 3500 {
		t.Fatalf("unparsable price = %v", sig.PredictedPrice)
	}
	if sig := parseResponse("PRICE: -100", snap); sig.PredictedPrice != 3500 {
		t.Fatalf("negative price = %v", sig.PredictedPrice)
	}
}

func TestParseResponseConfidenceClamped(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))

	if sig := parseResponse("CONFIDENCE: 150", snap); sig.Confidence != 1.0 {
		t.Fatalf("clamped high = %v, want exactly 1.0", sig.Confidence)
	}
	if sig := parseResponse("CONFIDENCE: -20", snap); sig.Confidence != 0 {
		t.Fatalf("clamped low = %v, want 0", sig.Confidence)
	}
	if sig := parseResponse("CONFIDENCE: 75%", snap); sig.Confidence != 0.75 {
		t.Fatalf("percent stripped = %v", sig.Confidence)
	}
}

func TestParseResponseReasoning(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))

	sig := parseResponse("REASONING: support at $3550: holding", snap)
	if sig.Reasoning != "support at $3550: holding" {
		t.Fatalf("colons inside reasoning lost: %q", sig.Reasoning)
	}

	long := strings.Repeat("x", 600)
	sig = parseResponse("REASONING: "+long, snap)
	if len(sig.Reasoning) != models.MaxReasoningLen {
		t.Fatalf("reasoning length = %d, want %d", len(sig.Reasoning), models.MaxReasoningLen)
	}
}

func TestParseResponseReasoningTruncatesOnRuneBoundary(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 5))

	sig := parseResponse("REASONING: "+strings.Repeat("é", 600), snap)
	if got := utf8.RuneCountInString(sig.Reasoning); got != models.MaxReasoningLen {
		t.Fatalf("reasoning runes = %d, want %d", got, models.MaxReasoningLen)
	}
	if !utf8.ValidString(sig.Reasoning) {
		t.Fatalf("reasoning holds a split rune: %q", sig.Reasoning[len(sig.Reasoning)-4:])
	}
}

func TestBuildPromptContainsAnswerBlock(t *testing.T) {
	snap := snapshotFromPrices(3500, repeat(3500, 3))
	prompt := buildPrompt(snap)

	for _, want := range []string{"ACTION:", "PRICE:", "CONFIDENCE:", "REASONING:", "Current Price: $3500.00", "3 hourly candles"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		123456789:  "123,456,789",
		1234567.89: "1,234,568",
	}
	for in, want := range cases {
		if got := groupThousands(in); got != want {
			t.Fatalf("groupThousands(%v) = %q, want %q", in, got, want)
		}
	}
}

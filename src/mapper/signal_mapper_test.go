package mapper

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"signalreconciler/src/model"
)

var testNow = time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC)

func TestMapPayloadToSignalResolvesAliasesInOrder(t *testing.T) {
	// "symbol" wins over "ticker", "final_verdict" over "verdict".
	payload := SignalPayload{
		"symbol":        "RELIANCE",
		"ticker":        "WRONG",
		"final_verdict": "strong_buy",
		"verdict":       "sell",
	}

	signal, err := MapPayloadToSignal(payload, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signal.Symbol != "RELIANCE" {
		t.Fatalf("expected symbol RELIANCE, got %s", signal.Symbol)
	}
	if signal.FinalVerdict != model.VerdictStrongBuy {
		t.Fatalf("expected strong_buy, got %s", signal.FinalVerdict)
	}
	if signal.Status != model.SignalStatusActive {
		t.Fatalf("expected ACTIVE, got %s", signal.Status)
	}
}

func TestMapPayloadToSignalFallsBackThroughAliases(t *testing.T) {
	payload := SignalPayload{
		"stock_code":     "tcs",
		"recommendation": "Strong Buy",
	}

	signal, err := MapPayloadToSignal(payload, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signal.Symbol != "TCS" {
		t.Fatalf("expected uppercased symbol TCS, got %s", signal.Symbol)
	}
	if signal.FinalVerdict != "strong_buy" {
		t.Fatalf("expected normalized strong_buy, got %s", signal.FinalVerdict)
	}
}

func TestMapPayloadToSignalStripsExchangeSuffixes(t *testing.T) {
	for _, raw := range []string{"INFY.NS", "INFY.BO", "INFY-EQ", "infy.ns"} {
		signal, err := MapPayloadToSignal(SignalPayload{"symbol": raw, "verdict": "buy"}, testNow)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if signal.Symbol != "INFY" {
			t.Fatalf("expected INFY for %q, got %s", raw, signal.Symbol)
		}
	}
}

func TestMapPayloadToSignalMissingSymbol(t *testing.T) {
	cases := []SignalPayload{
		{"verdict": "buy"},
		{"symbol": "", "verdict": "buy"},
		{"symbol": "   ", "verdict": "buy"},
		{"symbol": nil, "verdict": "buy"},
	}

	for _, payload := range cases {
		_, err := MapPayloadToSignal(payload, testNow)
		if !errors.Is(err, ErrMissingSymbol) {
			t.Fatalf("expected ErrMissingSymbol for %+v, got %v", payload, err)
		}
	}
}

func TestMapPayloadToSignalTimestamp(t *testing.T) {
	ts := time.Date(2026, 8, 21, 16, 30, 0, 0, time.UTC)

	signal, err := MapPayloadToSignal(SignalPayload{
		"symbol":    "HDFC",
		"verdict":   "buy",
		"timestamp": ts.Format(time.RFC3339),
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !signal.GeneratedAt.Equal(ts) {
		t.Fatalf("expected generated_at %v, got %v", ts, signal.GeneratedAt)
	}

	// epoch seconds arrive as JSON numbers
	signal, err = MapPayloadToSignal(SignalPayload{
		"symbol": "HDFC",
		"ts":     float64(ts.Unix()),
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !signal.GeneratedAt.Equal(ts) {
		t.Fatalf("expected epoch generated_at %v, got %v", ts, signal.GeneratedAt)
	}

	// unparseable timestamps fall back to now
	signal, err = MapPayloadToSignal(SignalPayload{
		"symbol": "HDFC",
		"ts":     "not-a-time",
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !signal.GeneratedAt.Equal(testNow) {
		t.Fatalf("expected fallback to now, got %v", signal.GeneratedAt)
	}
}

func TestMapPayloadToSignalCarriesIndicatorsOpaquely(t *testing.T) {
	payload := SignalPayload{
		"symbol":     "SBIN",
		"verdict":    "buy",
		"rsi":        29.4,
		"macd_cross": true,
		"note":       "oversold",
	}

	signal, err := MapPayloadToSignal(payload, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var indicators map[string]interface{}
	if err := json.Unmarshal(signal.Indicators, &indicators); err != nil {
		t.Fatalf("indicators are not valid JSON: %v", err)
	}

	if len(indicators) != 3 {
		t.Fatalf("expected 3 indicator attributes, got %d: %+v", len(indicators), indicators)
	}
	if indicators["rsi"] != 29.4 {
		t.Fatalf("expected rsi to pass through, got %v", indicators["rsi"])
	}
	if _, ok := indicators["symbol"]; ok {
		t.Fatalf("resolved symbol field leaked into indicators")
	}
	if _, ok := indicators["verdict"]; ok {
		t.Fatalf("verdict field leaked into indicators")
	}
}

func TestNormalizeVerdictVariants(t *testing.T) {
	cases := map[string]string{
		"Strong Buy": "strong_buy",
		"STRONG_BUY": "strong_buy",
		"strong-buy": "strong_buy",
		"Buy":        "buy",
		"HOLD":       "hold",
	}

	for in, want := range cases {
		if got := normalizeVerdict(in); got != want {
			t.Fatalf("normalizeVerdict(%q) = %q, want %q", in, got, want)
		}
	}
}

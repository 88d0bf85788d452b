package mapper

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"signalreconciler/src/model"
)

// SignalPayload is one raw recommendation as produced by the engine: a
// mapping with a symbol key, a verdict key and an open set of indicator keys
// that are carried through unchanged.
type SignalPayload map[string]interface{}

// Field aliases, in resolution order. The engine has changed its output shape
// over time, so each logical field is resolved by the first alias present in
// the payload.
var (
	symbolAliases  = []string{"symbol", "ticker", "stock", "stock_code", "scrip"}
	verdictAliases = []string{"final_verdict", "verdict", "signal", "recommendation"}
	tsAliases      = []string{"ts", "timestamp", "generated_at", "created_at"}
)

// symbolSuffixes are exchange suffixes stripped from incoming tickers.
var symbolSuffixes = []string{".NS", ".BO", "-EQ"}

var ErrMissingSymbol = errors.New("payload has no symbol")

// resolveField returns the value of the first alias present with a non-empty
// value, and the alias that matched.
func resolveField(payload SignalPayload, aliases []string) (interface{}, string, bool) {
	for _, alias := range aliases {
		if v, ok := payload[alias]; ok && v != nil {
			return v, alias, true
		}
	}
	return nil, "", false
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// MapPayloadToSignal normalizes one raw payload into a Signal entity.
// Payloads without a resolvable symbol return ErrMissingSymbol; the caller
// counts and skips them rather than failing the batch.
func MapPayloadToSignal(payload SignalPayload, now time.Time) (*model.Signal, error) {
	rawSymbol, symbolKey, ok := resolveField(payload, symbolAliases)
	if !ok || asString(rawSymbol) == "" {
		logger.WithField("mapper", "MapPayloadToSignal").
			Debug("Payload has no resolvable symbol, skipping")
		return nil, ErrMissingSymbol
	}
	symbol := normalizeSymbol(asString(rawSymbol))

	verdict := ""
	if rawVerdict, _, ok := resolveField(payload, verdictAliases); ok {
		verdict = normalizeVerdict(asString(rawVerdict))
	}

	generatedAt := now
	if rawTS, tsKey, ok := resolveField(payload, tsAliases); ok {
		if parsed, err := parseTimestamp(rawTS); err == nil {
			generatedAt = parsed
		} else {
			logger.WithFields(map[string]interface{}{
				"mapper": "MapPayloadToSignal",
				"symbol": symbol,
				"field":  tsKey,
			}).WithError(err).Debug("Unparseable timestamp, using current time")
		}
	}

	indicators, err := extractIndicators(payload, symbolKey)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"mapper": "MapPayloadToSignal",
			"symbol": symbol,
		}).WithError(err).Error("Failed to marshal indicator attributes")
		return nil, err
	}

	return &model.Signal{
		Symbol:       symbol,
		Verdict:      verdict,
		FinalVerdict: verdict,
		Status:       model.SignalStatusActive,
		Indicators:   indicators,
		GeneratedAt:  generatedAt,
	}, nil
}

// normalizeSymbol uppercases the ticker and strips known exchange suffixes.
func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range symbolSuffixes {
		symbol = strings.TrimSuffix(symbol, suffix)
	}
	return symbol
}

// normalizeVerdict lowercases and collapses spelling variants ("Strong Buy",
// "STRONG_BUY") onto the canonical verdict constants. Unknown verdicts pass
// through lowercased; the ledger treats them as non-buy.
func normalizeVerdict(verdict string) string {
	v := strings.ToLower(strings.TrimSpace(verdict))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	return v
}

func parseTimestamp(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case string:
		layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
		var lastErr error
		for _, layout := range layouts {
			parsed, err := time.Parse(layout, t)
			if err == nil {
				return parsed, nil
			}
			lastErr = err
		}
		return time.Time{}, lastErr
	case float64:
		// epoch seconds; the engine emits JSON numbers
		return time.Unix(int64(t), 0).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	default:
		return time.Time{}, errors.New("unsupported timestamp type")
	}
}

// extractIndicators serializes every key that is not the resolved symbol,
// verdict or timestamp field. The attributes are opaque to this core.
func extractIndicators(payload SignalPayload, symbolKey string) (datatypes.JSON, error) {
	consumed := map[string]bool{symbolKey: true}
	for _, alias := range verdictAliases {
		consumed[alias] = true
	}
	for _, alias := range tsAliases {
		consumed[alias] = true
	}

	indicators := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if consumed[k] {
			continue
		}
		indicators[k] = v
	}
	if len(indicators) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(indicators)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

package ledger

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"signalreconciler/src/model"
)

func newTestAggregator(db *gorm.DB) *PositionAggregator {
	aggregator := NewPositionAggregator(db)
	aggregator.now = func() time.Time { return sundayMorning }
	return aggregator
}

func TestApplyFillOpensPositionAndFoldsReentry(t *testing.T) {
	db := newTestDB(t)
	aggregator := newTestAggregator(db)
	ctx := context.Background()

	position, err := aggregator.ApplyFill(ctx, Fill{
		UserID:        7,
		Symbol:        "RELIANCE",
		ExecutedQty:   10,
		ExecutedPrice: 100,
		EntryType:     model.EntryTypeInitial,
		Meta:          model.OrderMetadata{TriggerIndicator: "rsi", TriggerValue: 28},
	})
	if err != nil {
		t.Fatalf("initial fill failed: %v", err)
	}

	if position.Quantity != 10 || position.AvgPrice != 100 {
		t.Fatalf("unexpected opened position: %+v", position)
	}
	if position.InitialEntryPrice != 100 {
		t.Fatalf("expected initial_entry_price 100, got %v", position.InitialEntryPrice)
	}
	if position.EntryIndicator != "rsi" {
		t.Fatalf("expected entry indicator rsi, got %q", position.EntryIndicator)
	}

	// Averaging down: 10 @ 100 plus 10 @ 90 is 20 @ 95.
	position, err = aggregator.ApplyFill(ctx, Fill{
		UserID:        7,
		Symbol:        "RELIANCE",
		ExecutedQty:   10,
		ExecutedPrice: 90,
		EntryType:     model.EntryTypeReentry,
		Meta:          model.OrderMetadata{Level: -5, IndicatorValue: 24, ReentryIndex: 0},
	})
	if err != nil {
		t.Fatalf("reentry fill failed: %v", err)
	}

	if position.Quantity != 20 {
		t.Fatalf("expected quantity 20, got %d", position.Quantity)
	}
	if position.AvgPrice != 95 {
		t.Fatalf("expected avg price 95, got %v", position.AvgPrice)
	}
	if position.ReentryCount != 1 {
		t.Fatalf("expected reentry_count 1, got %d", position.ReentryCount)
	}
	if position.LastReentryPrice == nil || *position.LastReentryPrice != 90 {
		t.Fatalf("unexpected last_reentry_price: %v", position.LastReentryPrice)
	}
	if len(position.Reentries) != 1 || position.Reentries[0].Qty != 10 {
		t.Fatalf("unexpected reentry history: %+v", position.Reentries)
	}

	// initial_entry_price is written once and never touched again
	if position.InitialEntryPrice != 100 {
		t.Fatalf("initial_entry_price was overwritten: %v", position.InitialEntryPrice)
	}
}

func TestApplyFillInitialAgainstOpenPositionKeepsAccountingHonest(t *testing.T) {
	db := newTestDB(t)
	aggregator := newTestAggregator(db)
	ctx := context.Background()

	if _, err := aggregator.ApplyFill(ctx, Fill{
		UserID: 7, Symbol: "TCS", ExecutedQty: 10, ExecutedPrice: 100,
		EntryType: model.EntryTypeInitial,
	}); err != nil {
		t.Fatalf("initial fill failed: %v", err)
	}

	// A second initial fill is a data error but quantity and average still move.
	position, err := aggregator.ApplyFill(ctx, Fill{
		UserID: 7, Symbol: "TCS", ExecutedQty: 10, ExecutedPrice: 110,
		EntryType: model.EntryTypeInitial,
	})
	if err != nil {
		t.Fatalf("second initial fill failed: %v", err)
	}

	if position.Quantity != 20 || position.AvgPrice != 105 {
		t.Fatalf("unexpected accounting: %+v", position)
	}
	if position.ReentryCount != 0 || len(position.Reentries) != 0 {
		t.Fatalf("initial fill must not create reentry bookkeeping: %+v", position)
	}
}

func TestApplyFillHonorsInitialPriceOverride(t *testing.T) {
	db := newTestDB(t)
	aggregator := newTestAggregator(db)

	override := 98.5
	position, err := aggregator.ApplyFill(context.Background(), Fill{
		UserID: 7, Symbol: "INFY", ExecutedQty: 10, ExecutedPrice: 101,
		EntryType:            model.EntryTypeInitial,
		InitialPriceOverride: &override,
	})
	if err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if position.InitialEntryPrice != 98.5 {
		t.Fatalf("expected override 98.5, got %v", position.InitialEntryPrice)
	}
	if position.AvgPrice != 101 {
		t.Fatalf("avg price must stay the execution price, got %v", position.AvgPrice)
	}
}

func TestApplySellPartialThenFull(t *testing.T) {
	db := newTestDB(t)
	aggregator := newTestAggregator(db)
	ctx := context.Background()

	if _, err := aggregator.ApplyFill(ctx, Fill{
		UserID: 7, Symbol: "RELIANCE", ExecutedQty: 20, ExecutedPrice: 100,
		EntryType: model.EntryTypeInitial,
	}); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	position, err := aggregator.ApplySell(ctx, 7, "RELIANCE", 5)
	if err != nil {
		t.Fatalf("partial sell failed: %v", err)
	}
	if position.Quantity != 15 || position.IsClosed() {
		t.Fatalf("partial sell must leave position open: %+v", position)
	}

	position, err = aggregator.ApplySell(ctx, 7, "RELIANCE", 15)
	if err != nil {
		t.Fatalf("full sell failed: %v", err)
	}
	if position.Quantity != 0 || !position.IsClosed() {
		t.Fatalf("full sell must close position: %+v", position)
	}
}

func TestApplySellClampsAtZero(t *testing.T) {
	db := newTestDB(t)
	aggregator := newTestAggregator(db)
	ctx := context.Background()

	if _, err := aggregator.ApplyFill(ctx, Fill{
		UserID: 7, Symbol: "RELIANCE", ExecutedQty: 10, ExecutedPrice: 100,
		EntryType: model.EntryTypeInitial,
	}); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	position, err := aggregator.ApplySell(ctx, 7, "RELIANCE", 50)
	if err != nil {
		t.Fatalf("oversell failed: %v", err)
	}

	if position.Quantity != 0 {
		t.Fatalf("quantity must clamp at zero, got %d", position.Quantity)
	}
	if !position.IsClosed() {
		t.Fatalf("oversell must close the position")
	}
}

func TestApplySellWithoutOpenPositionIsNoOp(t *testing.T) {
	db := newTestDB(t)
	aggregator := newTestAggregator(db)

	position, err := aggregator.ApplySell(context.Background(), 7, "RELIANCE", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if position != nil {
		t.Fatalf("expected nil position, got %+v", position)
	}
}

func TestReopenAfterCloseCreatesFreshRow(t *testing.T) {
	db := newTestDB(t)
	aggregator := newTestAggregator(db)
	ctx := context.Background()

	if _, err := aggregator.ApplyFill(ctx, Fill{
		UserID: 7, Symbol: "RELIANCE", ExecutedQty: 10, ExecutedPrice: 100,
		EntryType: model.EntryTypeInitial,
	}); err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if err := aggregator.MarkClosed(ctx, 7, "RELIANCE"); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	position, err := aggregator.ApplyFill(ctx, Fill{
		UserID: 7, Symbol: "RELIANCE", ExecutedQty: 5, ExecutedPrice: 120,
		EntryType: model.EntryTypeInitial,
	})
	if err != nil {
		t.Fatalf("reopen fill failed: %v", err)
	}

	if position.IsClosed() || position.Quantity != 5 {
		t.Fatalf("expected fresh open position, got %+v", position)
	}
	if position.InitialEntryPrice != 120 {
		t.Fatalf("fresh row must take its own initial price, got %v", position.InitialEntryPrice)
	}

	var count int64
	if err := db.Model(&model.Position{}).
		Where("user_id = ? AND symbol = ?", 7, "RELIANCE").
		Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected closed row plus fresh row, got %d", count)
	}
}

func TestWeightedAvgPrice(t *testing.T) {
	cases := []struct {
		oldQty    int64
		oldAvg    float64
		fillQty   int64
		fillPrice float64
		want      float64
	}{
		{10, 100, 10, 90, 95},
		{10, 100, 5, 130, 110},
		{0, 0, 10, 250.5, 250.5},
		{3, 333.3333, 1, 100, 275},
	}

	for _, tc := range cases {
		got := weightedAvgPrice(tc.oldQty, tc.oldAvg, tc.fillQty, tc.fillPrice)
		if got != tc.want {
			t.Fatalf("weightedAvgPrice(%d, %v, %d, %v) = %v, want %v",
				tc.oldQty, tc.oldAvg, tc.fillQty, tc.fillPrice, got, tc.want)
		}
	}
}

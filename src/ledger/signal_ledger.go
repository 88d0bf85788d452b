package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalreconciler/src/mapper"
	"signalreconciler/src/marketclock"
	"signalreconciler/src/model"
	"signalreconciler/src/repository"
)

// ErrMarketHours is returned when Reconcile is invoked during live trading
// without the gate bypassed. The caller's scheduler is expected to try again
// on a later tick.
var ErrMarketHours = errors.New("signals cannot be synced during market hours")

// ReconcileResult reports what one reconciliation pass did to the signal set.
type ReconcileResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Expired  int `json:"expired"`
}

// SignalLedger deduplicates incoming signal batches against stored signals
// and runs the signal status state machine. All mutations of one Reconcile
// call happen in a single database transaction.
//
// The current-row lookup and the subsequent insert/expire are only protected
// by that transaction's isolation level; the deployment is expected to run a
// single active scheduler, so two concurrent Reconcile calls for the same
// symbol are unsupported.
type SignalLedger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSignalLedger creates a ledger bound to the given database handle.
func NewSignalLedger(db *gorm.DB) *SignalLedger {
	return &SignalLedger{db: db, now: time.Now}
}

// Reconcile applies one batch of raw signal payloads for one requesting user.
// userID scopes the "already acted on this" override for TRADED symbols; pass
// zero when reconciling without a user context. skipGate bypasses the market
// hours check when the invoking scheduler already validated timing.
//
// Payloads without a resolvable symbol are skipped and counted, never fatal.
// A storage failure rolls the whole batch back and surfaces as a retriable
// error: nothing is partially applied.
func (l *SignalLedger) Reconcile(
	ctx context.Context,
	payloads []mapper.SignalPayload,
	userID uint,
	skipGate bool,
) (ReconcileResult, error) {

	result := ReconcileResult{}
	now := l.now()

	if !skipGate && !marketclock.MaySyncNow(now) {
		return result, ErrMarketHours
	}

	runLog := logrus.WithFields(logrus.Fields{
		"component":  "SignalLedger",
		"op":         "Reconcile",
		"run_id":     uuid.NewString(),
		"user_id":    userID,
		"batch_size": len(payloads),
	})
	runLog.Info("Starting signal reconciliation")

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signals := repository.NewSignalRepository().WithDB(tx)
		orders := repository.NewOrderRepository().WithDB(tx)
		positions := repository.NewPositionRepository().WithDB(tx)

		seen := make(map[string]bool, len(payloads))

		for _, payload := range payloads {
			incoming, err := mapper.MapPayloadToSignal(payload, now)
			if err != nil {
				// malformed input is counted, never fatal
				result.Skipped++
				continue
			}
			seen[incoming.Symbol] = true

			if err := l.applyOne(ctx, signals, orders, positions, incoming, userID, &result); err != nil {
				return err
			}
		}

		// Symbols the engine no longer flags lose their ACTIVE row.
		expired, err := signals.ExpireActiveNotIn(ctx, symbolSet(seen))
		if err != nil {
			return err
		}
		result.Expired += int(expired)

		return nil
	})

	if err != nil {
		if errors.Is(err, ErrMarketHours) {
			return ReconcileResult{}, err
		}
		runLog.WithError(err).Error("Reconciliation rolled back")
		return ReconcileResult{}, err
	}

	runLog.WithFields(logrus.Fields{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"expired":  result.Expired,
	}).Info("Signal reconciliation committed")

	return result, nil
}

// applyOne runs the per-payload state machine: one incoming signal against
// the current stored row for its symbol.
func (l *SignalLedger) applyOne(
	ctx context.Context,
	signals *repository.SignalRepository,
	orders *repository.OrderRepository,
	positions *repository.PositionRepository,
	incoming *model.Signal,
	userID uint,
	result *ReconcileResult,
) error {

	buyClass := model.IsBuyClassVerdict(incoming.FinalVerdict)

	current, err := signals.FindCurrentBySymbol(ctx, incoming.Symbol)
	if err != nil {
		return err
	}

	if current == nil {
		if !buyClass {
			result.Skipped++
			return nil
		}
		if err := signals.Create(ctx, incoming); err != nil {
			return err
		}
		result.Inserted++
		return nil
	}

	switch current.Status {
	case model.SignalStatusActive:
		existingBuy := model.IsBuyClassVerdict(current.FinalVerdict)

		switch {
		case buyClass && existingBuy:
			// Refresh the base record in place so it stays current for
			// every user, including ones that already traded it.
			current.Verdict = incoming.Verdict
			current.FinalVerdict = incoming.FinalVerdict
			current.Indicators = incoming.Indicators
			current.GeneratedAt = incoming.GeneratedAt
			if err := signals.Save(ctx, current); err != nil {
				return err
			}
			result.Updated++

		case buyClass && !existingBuy:
			if err := signals.UpdateStatus(ctx, current.ID, model.SignalStatusExpired); err != nil {
				return err
			}
			if err := signals.Create(ctx, incoming); err != nil {
				return err
			}
			result.Expired++
			result.Inserted++

		default:
			// verdict downgraded; the active recommendation lapses
			if err := signals.UpdateStatus(ctx, current.ID, model.SignalStatusExpired); err != nil {
				return err
			}
			result.Expired++
			result.Skipped++
		}

	case model.SignalStatusRejected, model.SignalStatusExpired:
		if !buyClass {
			result.Skipped++
			return nil
		}
		// clean slate: the old row is left untouched
		if err := signals.Create(ctx, incoming); err != nil {
			return err
		}
		result.Inserted++

	case model.SignalStatusTraded:
		if !buyClass {
			result.Skipped++
			return nil
		}

		holds, err := l.userHoldsPosition(ctx, orders, positions, userID, incoming.Symbol)
		if err != nil {
			return err
		}
		if holds {
			// still held, no duplicate recommendation needed
			result.Skipped++
			return nil
		}

		if err := signals.Create(ctx, incoming); err != nil {
			return err
		}
		result.Inserted++

	default:
		logrus.WithFields(logrus.Fields{
			"component": "SignalLedger",
			"symbol":    current.Symbol,
			"status":    current.Status,
		}).Warn("Signal in unknown status, leaving unchanged")
		result.Skipped++
	}

	return nil
}

// userHoldsPosition reports whether the user has a live order on the symbol
// whose holding has not been closed since. A missing position row counts as
// "not closed": the order may simply not have executed yet.
func (l *SignalLedger) userHoldsPosition(
	ctx context.Context,
	orders *repository.OrderRepository,
	positions *repository.PositionRepository,
	userID uint,
	symbol string,
) (bool, error) {

	if userID == 0 {
		return false, nil
	}

	order, err := orders.FindLatestOngoingByUserAndSymbol(ctx, userID, symbol)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, nil
	}

	position, err := positions.FindLatestByUserAndSymbol(ctx, userID, symbol)
	if err != nil {
		return false, err
	}
	if position != nil && position.IsClosed() {
		return false, nil
	}

	return true, nil
}

func symbolSet(seen map[string]bool) []string {
	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	return symbols
}

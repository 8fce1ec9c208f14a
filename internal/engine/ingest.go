package engine

import (
	"context"

	"copytrader/internal/decode"
	"copytrader/internal/stream"
)

// OnStreamUpdate adapts a raw stream.Update into a decoded TradeEvent
// and dispatches it to HandleEvent. Decode errors are logged and
// skipped; only a stream-level read error terminates the ingest loop,
// never a single event's decode failure.
func (e *Engine) OnStreamUpdate(ctx context.Context, cls decode.Classify) func(stream.Update) {
	return func(upd stream.Update) {
		if upd.Transaction == nil {
			return
		}
		tx := upd.Transaction
		raw := decode.RawTransaction{
			Signature:       tx.Signature,
			Slot:            tx.Slot,
			RecentBlockhash: tx.RecentBlockhash,
			AccountKeys:     tx.AccountKeys,
			PreBalances:     tx.PreBalances,
			PostBalances:    tx.PostBalances,
		}
		for _, ix := range tx.Instructions {
			raw.Instructions = append(raw.Instructions, decode.Instruction{
				ProgramID:      ix.ProgramID,
				AccountIndexes: ix.AccountIndexes,
			})
		}
		for _, tb := range tx.PostTokenBalances {
			raw.PostTokenBalances = append(raw.PostTokenBalances, decode.TokenBalance{
				AccountIndex: tb.AccountIndex,
				Owner:        tb.Owner,
				UIAmount:     tb.UIAmount,
			})
		}

		ev, err := decode.Decode(raw, tx.LogMessages, cls)
		if err != nil {
			e.log.Error("decode error for sig=%s: %v", tx.Signature, err)
			return
		}
		e.HandleEvent(ctx, ev)
	}
}

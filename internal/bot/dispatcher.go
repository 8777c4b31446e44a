package bot

import (
	"go.uber.org/zap"

	"triarb/internal/market"
	"triarb/internal/okx"
)

// BalanceWriter персистит баланс валюты.
type BalanceWriter interface {
	Upsert(b market.Balance) error
}

// OpenOrderWriter персистит набор открытых ордеров.
type OpenOrderWriter interface {
	Upsert(o market.OpenOrder) error
	Delete(orderID string) error
}

// Dispatcher разбирает сообщения фидов и раскладывает их по
// состоянию: книга цен, состояние аккаунта, write-through в базу.
//
// Ошибка разбора возвращается фиду (тот решает, пропустить или упасть);
// ошибка записи в базу только логируется - деградация базы не должна
// останавливать поток маркет-данных.
type Dispatcher struct {
	book        *market.PriceBook
	account     *market.AccountState
	balanceRepo BalanceWriter
	orderRepo   OpenOrderWriter
	logger      *zap.Logger
}

// NewDispatcher создаёт диспетчер. Репозитории могут быть nil.
func NewDispatcher(
	book *market.PriceBook,
	account *market.AccountState,
	balanceRepo BalanceWriter,
	orderRepo OpenOrderWriter,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		book:        book,
		account:     account,
		balanceRepo: balanceRepo,
		orderRepo:   orderRepo,
		logger:      logger,
	}
}

// HandleMarket обрабатывает сообщение публичного канала books.
func (d *Dispatcher) HandleMarket(raw []byte) error {
	env, err := okx.ParseEnvelope(raw)
	if err != nil {
		FeedHandlerErrors.WithLabelValues(okx.ChannelBooks).Inc()
		return err
	}
	if env.Arg.Channel != okx.ChannelBooks {
		return nil
	}

	upd, err := okx.ParseBookUpdate(env)
	if err != nil {
		FeedHandlerErrors.WithLabelValues(okx.ChannelBooks).Inc()
		return err
	}

	d.book.Update(upd.InstID, market.QuoteUpdate{
		Bid:       upd.Bid,
		Ask:       upd.Ask,
		BidVolume: upd.BidVolume,
		AskVolume: upd.AskVolume,
	})
	RecordFeedMessage(okx.ChannelBooks)
	return nil
}

// HandlePrivate обрабатывает сообщения приватных каналов account и orders.
func (d *Dispatcher) HandlePrivate(raw []byte) error {
	env, err := okx.ParseEnvelope(raw)
	if err != nil {
		return err
	}

	switch env.Arg.Channel {
	case okx.ChannelAccount:
		return d.handleBalances(env)
	case okx.ChannelOrders:
		return d.handleOrders(env)
	default:
		return nil
	}
}

func (d *Dispatcher) handleBalances(env okx.Envelope) error {
	updates, dropped, err := okx.ParseBalanceUpdates(env)
	if err != nil {
		FeedHandlerErrors.WithLabelValues(okx.ChannelAccount).Inc()
		return err
	}

	// плохая запись отбрасывается, остальной батч применяется
	for _, derr := range dropped {
		FeedHandlerErrors.WithLabelValues(okx.ChannelAccount).Inc()
		d.logger.Warn("dropping malformed balance record", zap.Error(derr))
	}

	for _, u := range updates {
		b := market.Balance{
			Currency:  u.Currency,
			Available: u.Available,
			Frozen:    u.Frozen,
		}
		d.account.UpsertBalance(b)
		if d.balanceRepo != nil {
			if err := d.balanceRepo.Upsert(b); err != nil {
				d.logger.Warn("persist balance failed",
					zap.String("currency", u.Currency),
					zap.Error(err))
			}
		}
	}
	RecordFeedMessage(okx.ChannelAccount)
	return nil
}

func (d *Dispatcher) handleOrders(env okx.Envelope) error {
	events, err := okx.ParseOrderEvents(env)
	if err != nil {
		FeedHandlerErrors.WithLabelValues(okx.ChannelOrders).Inc()
		return err
	}

	for _, ev := range events {
		switch ev.State {
		case okx.OrderStateLive, okx.OrderStatePartiallyFilled:
			o := market.OpenOrder{
				OrderID:      ev.OrderID,
				InstrumentID: ev.InstrumentID,
				Side:         ev.Side,
				Price:        ev.Price,
				Size:         ev.Size,
				CreatedAt:    ev.CreatedAt,
			}
			d.account.RecordOpenOrder(o)
			if d.orderRepo != nil {
				if err := d.orderRepo.Upsert(o); err != nil {
					d.logger.Warn("persist open order failed",
						zap.String("ordId", ev.OrderID),
						zap.Error(err))
				}
			}
		case okx.OrderStateFilled, okx.OrderStateCanceled:
			d.account.ClearOrder(ev.OrderID)
			if d.orderRepo != nil {
				if err := d.orderRepo.Delete(ev.OrderID); err != nil {
					d.logger.Warn("delete open order failed",
						zap.String("ordId", ev.OrderID),
						zap.Error(err))
				}
			}
		default:
			// плохая запись отбрасывается, остальной батч применяется
			FeedHandlerErrors.WithLabelValues(okx.ChannelOrders).Inc()
			d.logger.Warn("dropping order event with unknown state",
				zap.String("ordId", ev.OrderID),
				zap.String("state", ev.State))
		}
	}
	RecordFeedMessage(okx.ChannelOrders)
	return nil
}

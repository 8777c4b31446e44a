package okx

import (
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Каналы WebSocket API v5.
const (
	ChannelBooks   = "books"
	ChannelAccount = "account"
	ChannelOrders  = "orders"
)

// Envelope - общая обёртка сообщения WebSocket. Служебные сообщения
// (event) и данные каналов (arg + data) различаются по заполненным полям.
type Envelope struct {
	Event string              `json:"event"`
	Code  string              `json:"code"`
	Msg   string              `json:"msg"`
	Arg   ChannelArg          `json:"arg"`
	Data  jsoniter.RawMessage `json:"data"`
}

// ChannelArg идентифицирует канал и инструмент подписки.
type ChannelArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// ParseEnvelope разбирает сырое сообщение WebSocket.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	return env, nil
}

// IsEvent сообщает, является ли сообщение служебным (subscribe/login/error).
func (e Envelope) IsEvent() bool {
	return e.Event != ""
}

// BookUpdate - обновление top-of-book по одному инструменту.
// Nil-поле означает, что сторона книги в сообщении отсутствовала.
type BookUpdate struct {
	InstID    string
	Bid       *float64
	BidVolume *float64
	Ask       *float64
	AskVolume *float64
}

// ParseBookUpdate извлекает top-of-book из сообщения канала books.
// Инкрементальные сообщения могут содержать только одну сторону книги.
func ParseBookUpdate(env Envelope) (BookUpdate, error) {
	var data []struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return BookUpdate{}, fmt.Errorf("parse books data: %w", err)
	}
	if len(data) == 0 {
		return BookUpdate{}, fmt.Errorf("books message for %s has no data", env.Arg.InstID)
	}

	upd := BookUpdate{InstID: env.Arg.InstID}
	if len(data[0].Bids) > 0 {
		price, volume, err := parseLevel(data[0].Bids[0])
		if err != nil {
			return BookUpdate{}, fmt.Errorf("parse bid level for %s: %w", env.Arg.InstID, err)
		}
		upd.Bid, upd.BidVolume = &price, &volume
	}
	if len(data[0].Asks) > 0 {
		price, volume, err := parseLevel(data[0].Asks[0])
		if err != nil {
			return BookUpdate{}, fmt.Errorf("parse ask level for %s: %w", env.Arg.InstID, err)
		}
		upd.Ask, upd.AskVolume = &price, &volume
	}
	return upd, nil
}

func parseLevel(level []string) (price, volume float64, err error) {
	if len(level) < 2 {
		return 0, 0, fmt.Errorf("level has %d fields, want at least 2", len(level))
	}
	price, err = strconv.ParseFloat(level[0], 64)
	if err != nil {
		return 0, 0, err
	}
	volume, err = strconv.ParseFloat(level[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return price, volume, nil
}

// BalanceUpdate - баланс одной валюты из канала account.
type BalanceUpdate struct {
	Currency  string
	Available float64
	Frozen    float64
}

// ParseBalanceUpdates извлекает балансы из сообщения канала account.
//
// Плохая запись (непарсибельное число) не роняет батч: она попадает в
// dropped, остальные записи применимы. Ошибка возвращается только при
// неразборном сообщении целиком.
func ParseBalanceUpdates(env Envelope) (updates []BalanceUpdate, dropped []error, err error) {
	var data []struct {
		Details []struct {
			Ccy       string `json:"ccy"`
			AvailBal  string `json:"availBal"`
			FrozenBal string `json:"frozenBal"`
		} `json:"details"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, nil, fmt.Errorf("parse account data: %w", err)
	}

	for _, d := range data {
		for _, detail := range d.Details {
			avail, err := strconv.ParseFloat(detail.AvailBal, 64)
			if err != nil {
				dropped = append(dropped, fmt.Errorf("parse availBal for %s: %w", detail.Ccy, err))
				continue
			}
			frozen := 0.0
			if detail.FrozenBal != "" {
				frozen, err = strconv.ParseFloat(detail.FrozenBal, 64)
				if err != nil {
					dropped = append(dropped, fmt.Errorf("parse frozenBal for %s: %w", detail.Ccy, err))
					continue
				}
			}
			updates = append(updates, BalanceUpdate{
				Currency:  detail.Ccy,
				Available: avail,
				Frozen:    frozen,
			})
		}
	}
	return updates, dropped, nil
}

// Состояния ордера в канале orders.
const (
	OrderStateLive            = "live"
	OrderStateFilled          = "filled"
	OrderStateCanceled        = "canceled"
	OrderStatePartiallyFilled = "partially_filled"
)

// OrderEvent - событие ордера из приватного канала orders.
type OrderEvent struct {
	OrderID      string
	InstrumentID string
	Side         string
	Price        float64
	Size         float64
	State        string
	CreatedAt    time.Time
}

// ParseOrderEvents извлекает события из сообщения канала orders.
// Нечисловые px/sz (маркет-ордера присылают пустой px) дают нулевое поле.
func ParseOrderEvents(env Envelope) ([]OrderEvent, error) {
	var data []struct {
		OrdID  string `json:"ordId"`
		InstID string `json:"instId"`
		Side   string `json:"side"`
		Px     string `json:"px"`
		Sz     string `json:"sz"`
		CTime  string `json:"cTime"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("parse orders data: %w", err)
	}

	events := make([]OrderEvent, 0, len(data))
	for _, d := range data {
		px, _ := strconv.ParseFloat(d.Px, 64)
		sz, _ := strconv.ParseFloat(d.Sz, 64)

		var created time.Time
		if ms, err := strconv.ParseInt(d.CTime, 10, 64); err == nil {
			created = time.UnixMilli(ms)
		}

		events = append(events, OrderEvent{
			OrderID:      d.OrdID,
			InstrumentID: d.InstID,
			Side:         d.Side,
			Price:        px,
			Size:         sz,
			State:        d.State,
			CreatedAt:    created,
		})
	}
	return events, nil
}

// SubscribeRequest строит сообщение подписки на канал books для набора
// инструментов.
func SubscribeRequest(channel string, instIDs []string) map[string]interface{} {
	args := make([]map[string]string, 0, len(instIDs))
	for _, id := range instIDs {
		args = append(args, map[string]string{"channel": channel, "instId": id})
	}
	return map[string]interface{}{"op": "subscribe", "args": args}
}

// PrivateSubscribeRequest строит подписку на приватные каналы account
// и orders (orders - по всем SPOT инструментам).
func PrivateSubscribeRequest() map[string]interface{} {
	return map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": ChannelAccount},
			{"channel": ChannelOrders, "instType": "SPOT"},
		},
	}
}

// OrderRequest строит сообщение выставления маркет-ордера.
func OrderRequest(requestID, instID, side string, size float64) map[string]interface{} {
	return map[string]interface{}{
		"id": requestID,
		"op": "order",
		"args": []map[string]string{{
			"instId":  instID,
			"tdMode":  "cash",
			"side":    side,
			"ordType": "market",
			"sz":      strconv.FormatFloat(size, 'f', -1, 64),
		}},
	}
}

// OrderResponse - ответ биржи на op=order.
type OrderResponse struct {
	ID   string `json:"id"`
	Op   string `json:"op"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	} `json:"data"`
}

// ParseOrderResponse разбирает ответ на выставление ордера и возвращает
// идентификатор ордера. Ненулевой код ответа или пустой ordId - ошибка.
func ParseOrderResponse(raw []byte) (string, error) {
	var resp OrderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("parse order response: %w", err)
	}

	if resp.Code != "" && resp.Code != "0" {
		return "", &APIError{Op: "order", Code: resp.Code, Msg: resp.Msg}
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("order response has no data")
	}
	d := resp.Data[0]
	if d.SCode != "" && d.SCode != "0" {
		return "", &APIError{Op: "order", Code: d.SCode, Msg: d.SMsg}
	}
	if d.OrdID == "" {
		return "", fmt.Errorf("order response has empty ordId")
	}
	return d.OrdID, nil
}

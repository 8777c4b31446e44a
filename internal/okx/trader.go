package okx

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"triarb/pkg/ratelimit"
)

// Trader выставляет маркет-ордера через приватный WebSocket.
//
// Каждый ордер отправляется через свежее соединение: логин, op=order,
// разбор ответа, закрытие. Исполнение последовательное и редкое
// (три ноги на сделку), накладные расходы соединения несущественны
// по сравнению с изоляцией от состояния долгоживущих фидов.
type Trader struct {
	wsURL          string
	creds          Credentials
	connectTimeout time.Duration
	limiter        *ratelimit.RateLimiter
	logger         *zap.Logger

	requestSeq int64
}

// Лимит OKX на ордерные запросы.
const (
	orderRateLimit = 20
	orderRateBurst = 40
)

// NewTrader создаёт трейдера для приватного WebSocket.
func NewTrader(wsURL string, creds Credentials, connectTimeout time.Duration, logger *zap.Logger) *Trader {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &Trader{
		wsURL:          wsURL,
		creds:          creds,
		connectTimeout: connectTimeout,
		limiter:        ratelimit.NewRateLimiter(orderRateLimit, orderRateBurst),
		logger:         logger,
	}
}

// PlaceMarketOrder выставляет маркет-ордер и возвращает его идентификатор.
//
// Ошибка на любом шаге (соединение, логин, отправка, отказ биржи)
// означает, что ордера нет - вызывающая сторона не должна ждать его
// заполнения.
func (t *Trader) PlaceMarketOrder(ctx context.Context, instID, side string, size float64) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("order rate limit: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.connectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	conn, _, err := dialer.DialContext(dialCtx, t.wsURL, nil)
	cancel()
	if err != nil {
		return "", fmt.Errorf("dial private ws: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(t.connectTimeout))
		conn.SetWriteDeadline(time.Now().Add(t.connectTimeout))
	}

	if err := login(conn, t.creds); err != nil {
		return "", err
	}

	requestID := strconv.FormatInt(atomic.AddInt64(&t.requestSeq, 1), 10)
	req := OrderRequest(requestID, instID, side, size)
	if err := conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("send order: %w", err)
	}

	t.logger.Info("order sent",
		zap.String("instId", instID),
		zap.String("side", side),
		zap.Float64("size", size))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read order response: %w", err)
	}

	orderID, err := ParseOrderResponse(raw)
	if err != nil {
		return "", err
	}

	t.logger.Info("order accepted",
		zap.String("instId", instID),
		zap.String("ordId", orderID))

	return orderID, nil
}

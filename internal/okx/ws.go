package okx

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedState - состояние жизненного цикла WebSocket фида.
type FeedState int32

const (
	FeedStateConnecting FeedState = iota
	FeedStateSubscribed
	FeedStateStreaming
	FeedStateClosed
	FeedStateFailed
)

func (s FeedState) String() string {
	switch s {
	case FeedStateConnecting:
		return "connecting"
	case FeedStateSubscribed:
		return "subscribed"
	case FeedStateStreaming:
		return "streaming"
	case FeedStateClosed:
		return "closed"
	case FeedStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MessageHandler обрабатывает одно сырое сообщение канала.
type MessageHandler func(raw []byte) error

// FeedConfig - конфигурация одного WebSocket фида.
type FeedConfig struct {
	// Name - имя фида для логов и метрик
	Name string

	// URL для подключения
	URL string

	// Subscriptions отправляются после подключения (и логина)
	Subscriptions []interface{}

	// Credentials - ключи приватного канала; nil для публичного
	Credentials *Credentials

	// Параметры переподключения
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Таймауты соединения
	ConnectTimeout time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration

	// FailFastOnHandlerError превращает ошибку обработчика сообщения
	// из логируемой и пропускаемой в фатальную для фида
	FailFastOnHandlerError bool
}

func (c *FeedConfig) applyDefaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 5 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 10 * time.Second
	}
}

// handlerFault - ошибка пользовательского обработчика сообщения,
// отличаемая от транспортных ошибок соединения.
type handlerFault struct {
	err error
}

func (f *handlerFault) Error() string { return fmt.Sprintf("message handler: %v", f.err) }
func (f *handlerFault) Unwrap() error { return f.err }

// Feed - одно WebSocket соединение с биржей с автоматическим
// переподключением.
//
// Жизненный цикл: connecting → subscribed → streaming; при разрыве
// цикл повторяется с exponential backoff. Два завершения терминальны:
// нормальное закрытие со стороны биржи (код 1000) и отмена контекста.
// Ошибка обработчика сообщения логируется и пропускается; при
// FailFastOnHandlerError она роняет фид в состояние failed.
type Feed struct {
	cfg     FeedConfig
	handler MessageHandler
	logger  *zap.Logger
	state   int32
}

// NewFeed создаёт фид. Handler вызывается последовательно для каждого
// сообщения данных из одной горутины чтения.
func NewFeed(cfg FeedConfig, handler MessageHandler, logger *zap.Logger) *Feed {
	cfg.applyDefaults()
	return &Feed{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(zap.String("feed", cfg.Name)),
	}
}

// Name возвращает имя фида.
func (f *Feed) Name() string {
	return f.cfg.Name
}

// State возвращает текущее состояние фида.
func (f *Feed) State() FeedState {
	return FeedState(atomic.LoadInt32(&f.state))
}

func (f *Feed) setState(s FeedState) {
	atomic.StoreInt32(&f.state, int32(s))
}

// Run блокирует до терминального завершения фида.
//
// Возвращает nil при нормальном закрытии биржей, ошибку контекста при
// отмене, ошибку обработчика при включённом FailFastOnHandlerError.
func (f *Feed) Run(ctx context.Context) error {
	bo := newBackoff(f.cfg.InitialDelay, f.cfg.MaxDelay)

	for {
		streamed, err := f.session(ctx)

		if ctx.Err() != nil {
			f.setState(FeedStateClosed)
			return ctx.Err()
		}

		if err == nil {
			// биржа закрыла соединение кодом 1000
			f.logger.Info("feed closed normally by exchange")
			f.setState(FeedStateClosed)
			return nil
		}

		var fault *handlerFault
		if errors.As(err, &fault) && f.cfg.FailFastOnHandlerError {
			f.logger.Error("feed failed on handler error", zap.Error(fault.err))
			f.setState(FeedStateFailed)
			return err
		}

		// успешный стриминг в прошедшей сессии сбрасывает backoff
		if streamed {
			bo.Reset()
		}

		delay := bo.Next()
		f.logger.Warn("feed disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			f.setState(FeedStateClosed)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session выполняет одну сессию: подключение, логин, подписка, чтение.
// Возвращает streamed=true, если было обработано хотя бы одно сообщение
// данных, и nil в качестве ошибки только при нормальном закрытии.
func (f *Feed) session(ctx context.Context) (streamed bool, err error) {
	f.setState(FeedStateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.ConnectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, f.cfg.ConnectTimeout)
	conn, _, err := dialer.DialContext(dialCtx, f.cfg.URL, nil)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.cfg.PingInterval + f.cfg.PongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(f.cfg.PingInterval + f.cfg.PongTimeout))

	if f.cfg.Credentials != nil {
		if err := login(conn, *f.cfg.Credentials); err != nil {
			return false, err
		}
	}

	for _, sub := range f.cfg.Subscriptions {
		if err := conn.WriteJSON(sub); err != nil {
			return false, fmt.Errorf("subscribe: %w", err)
		}
	}
	f.setState(FeedStateSubscribed)
	f.logger.Info("feed subscribed", zap.Int("subscriptions", len(f.cfg.Subscriptions)))

	// пингуем в отдельной горутине, пока сессия жива
	pingDone := make(chan struct{})
	defer close(pingDone)
	go f.pingLoop(conn, pingDone)

	// отмена контекста рвёт блокирующее чтение
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopWatch:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return streamed, nil
			}
			return streamed, fmt.Errorf("read: %w", err)
		}

		env, perr := ParseEnvelope(raw)
		if perr != nil {
			f.logger.Warn("unparseable message skipped", zap.Error(perr))
			continue
		}
		if env.IsEvent() {
			f.handleEvent(env)
			continue
		}

		if f.State() != FeedStateStreaming {
			f.setState(FeedStateStreaming)
		}
		streamed = true

		if herr := f.handler(raw); herr != nil {
			if f.cfg.FailFastOnHandlerError {
				return streamed, &handlerFault{err: herr}
			}
			f.logger.Error("message handler error, message skipped",
				zap.String("channel", env.Arg.Channel),
				zap.String("instId", env.Arg.InstID),
				zap.Error(herr))
		}
	}
}

func (f *Feed) handleEvent(env Envelope) {
	switch env.Event {
	case "error":
		f.logger.Error("exchange error event",
			zap.String("code", env.Code),
			zap.String("msg", env.Msg))
	case "subscribe":
		f.logger.Debug("subscription confirmed",
			zap.String("channel", env.Arg.Channel),
			zap.String("instId", env.Arg.InstID))
	case "login":
		f.logger.Info("login confirmed")
	}
}

func (f *Feed) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(f.cfg.PongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// чтение упадёт следом и запустит переподключение
				return
			}
		}
	}
}

// login выполняет логин приватного канала и ждёт подтверждения.
func login(conn *websocket.Conn, creds Credentials) error {
	if err := conn.WriteJSON(LoginRequest(creds, LoginTimestamp())); err != nil {
		return fmt.Errorf("send login: %w", err)
	}

	// до логина биржа не шлёт ничего, кроме ответа на логин
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}

	env, err := ParseEnvelope(raw)
	if err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if env.Event == "error" || (env.Code != "" && env.Code != "0") {
		return fmt.Errorf("login rejected: code=%s msg=%s", env.Code, env.Msg)
	}
	return nil
}

// backoff - exponential backoff переподключения: задержка удваивается
// до максимума, Reset возвращает её к начальной.
type backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, next: initial}
}

// Next возвращает текущую задержку и удваивает следующую.
func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset возвращает задержку к начальной.
func (b *backoff) Reset() {
	b.next = b.initial
}

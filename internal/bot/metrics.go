package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

// ============ Метрики оценки ============

// EvaluationPasses - количество проходов оценки треугольников
var EvaluationPasses = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "triarb",
		Subsystem: "evaluator",
		Name:      "passes_total",
		Help:      "Total number of evaluation passes over the triangle set",
	},
)

// TrianglesEvaluated - оценённые треугольники по исходу
var TrianglesEvaluated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "triarb",
		Subsystem: "evaluator",
		Name:      "triangles_total",
		Help:      "Triangles examined per outcome",
	},
	[]string{"outcome"}, // qualified, rejected, no_quotes
)

// BestProfit - прибыль лучшей возможности последнего прохода
var BestProfit = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "triarb",
		Subsystem: "evaluator",
		Name:      "best_profit",
		Help:      "Profit of the best opportunity from the latest pass (0 when none)",
	},
)

// TrianglesActive - размер рабочего набора треугольников
var TrianglesActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "triarb",
		Subsystem: "evaluator",
		Name:      "triangles_active",
		Help:      "Number of triangles in the working set",
	},
)

// ============ Метрики фидов ============

// FeedConnectionState - состояние фида (1 в текущем состоянии)
var FeedConnectionState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "triarb",
		Subsystem: "feed",
		Name:      "connection_state",
		Help:      "Feed connection state (1=streaming, 0=not streaming)",
	},
	[]string{"feed"},
)

// FeedMessages - обработанные сообщения по каналам
var FeedMessages = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "triarb",
		Subsystem: "feed",
		Name:      "messages_total",
		Help:      "Processed feed messages per channel",
	},
	[]string{"channel"},
)

// FeedHandlerErrors - ошибки обработчиков сообщений
var FeedHandlerErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "triarb",
		Subsystem: "feed",
		Name:      "handler_errors_total",
		Help:      "Message handler errors per channel",
	},
	[]string{"channel"},
)

// ============ Метрики исполнения ============

// OrdersPlaced - выставленные ордера
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "triarb",
		Subsystem: "executor",
		Name:      "orders_total",
		Help:      "Orders placed per leg and result",
	},
	[]string{"leg", "result"}, // result: accepted, rejected
)

// ExecutionsTotal - завершённые исполнения треугольников
var ExecutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "triarb",
		Subsystem: "executor",
		Name:      "executions_total",
		Help:      "Triangle executions per result",
	},
	[]string{"result"}, // completed, aborted
)

// LegFillSeconds - время ожидания заполнения ноги
var LegFillSeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "triarb",
		Subsystem: "executor",
		Name:      "leg_fill_seconds",
		Help:      "Time waiting for a leg order to fill",
		Buckets:   []float64{0.2, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"leg"},
)

// ExecutorState - текущее состояние машины исполнения
var ExecutorState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "triarb",
		Subsystem: "executor",
		Name:      "state",
		Help:      "Executor state machine position (1 for current state)",
	},
	[]string{"state"},
)

// ============ Вспомогательные функции ============

// RecordEvaluationOutcome записывает исход оценки одного треугольника
func RecordEvaluationOutcome(outcome string) {
	TrianglesEvaluated.WithLabelValues(outcome).Inc()
}

// RecordFeedMessage записывает обработанное сообщение фида
func RecordFeedMessage(channel string) {
	FeedMessages.WithLabelValues(channel).Inc()
}

// RecordExecutorState выставляет текущее состояние исполнения
func RecordExecutorState(current string) {
	for state := range ValidTransitions {
		v := 0.0
		if state == current {
			v = 1.0
		}
		ExecutorState.WithLabelValues(state).Set(v)
	}
}

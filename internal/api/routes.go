package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRoutes настраивает HTTP маршруты приложения.
//
// Структура:
//
//	/health              - проверка живости
//	/metrics             - Prometheus метрики
//	/api/v1/opportunities - возможности последнего прохода оценки
//	/api/v1/status        - состояние исполнения и фидов
//	/api/v1/balances      - балансы аккаунта
func SetupRoutes(h *Handler, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(Recovery(logger))
	router.Use(Logging(logger))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/opportunities", h.GetOpportunities).Methods("GET")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/balances", h.GetBalances).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}

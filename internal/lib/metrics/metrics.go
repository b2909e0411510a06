package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Счётчики основных операций витрины
var (
	CartValidations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "packshop",
		Name:      "cart_validations_total",
		Help:      "Total number of cart validation calls.",
	})
	CartValidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "packshop",
		Name:      "cart_validation_failures_total",
		Help:      "Total number of cart validations that returned line errors.",
	})
	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "packshop",
		Name:      "orders_created_total",
		Help:      "Total number of successfully committed orders.",
	})
)

func init() {
	prometheus.MustRegister(CartValidations, CartValidationFailures, OrdersCreated)
}

// Handler возвращает http-обработчик для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

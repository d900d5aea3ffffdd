package resource

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resource_operations_total",
			Help: "Resource operations by entity, operation and outcome.",
		},
		[]string{"entity", "operation", "outcome"},
	)

	stockRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resource_stock_rejections_total",
			Help: "Orders or imports rejected for insufficient stock.",
		},
		[]string{"policy"},
	)

	compensationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resource_compensation_failures_total",
			Help: "Compensating writes that failed after an aborted operation.",
		},
	)
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperrors.ErrBusinessRule), errors.Is(err, apperrors.ErrInsufficient):
		return "rejected"
	case apperrors.HTTPStatus(err) < 500:
		return "invalid"
	default:
		return "error"
	}
}

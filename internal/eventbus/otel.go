package eventbus

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/warfare-dev/extension/internal/eventbus"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

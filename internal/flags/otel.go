package flags

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/warfare-dev/extension/internal/flags"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skyward-uas/gimbal-director/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

package markersync

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/salonbook/mapsync/internal/markersync"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

package pipeline

import (
	"log"

	"go.opentelemetry.io/otel/metric"
)

var (
	stageErrorsCounter     metric.Int64Counter
	turnsCounter           metric.Int64Counter
	interruptionsCounter   metric.Int64Counter
	responseLatencySeconds metric.Float64Histogram
)

func init() {
	var err error

	stageErrorsCounter, err = meter.Int64Counter("pipeline.stage.errors",
		metric.WithDescription("Frames whose processing failed, by stage"))
	if err != nil {
		log.Println("Warning: failed to create stage errors counter:", err)
	}

	turnsCounter, err = meter.Int64Counter("pipeline.turns",
		metric.WithDescription("Assistant turns started"))
	if err != nil {
		log.Println("Warning: failed to create turns counter:", err)
	}

	interruptionsCounter, err = meter.Int64Counter("pipeline.interruptions",
		metric.WithDescription("Assistant turns cut short by the user"))
	if err != nil {
		log.Println("Warning: failed to create interruptions counter:", err)
	}

	responseLatencySeconds, err = meter.Float64Histogram("pipeline.response.latency",
		metric.WithDescription("Time from the start of a generation pass to the first streamed response token"),
		metric.WithUnit("s"))
	if err != nil {
		log.Println("Warning: failed to create response latency histogram:", err)
	}
}

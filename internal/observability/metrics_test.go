package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("mdpctl", "GET", "/health", 200, 12*time.Millisecond)
	RecordDecode(46, ResultOK, 3*time.Microsecond)
	RecordGroupFallbacks(46, 0)

	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}

func TestDecodeCountersByOutcome(t *testing.T) {
	before := testutil.ToFloat64(decodeMessages.WithLabelValues("32", ResultMalformed))
	RecordDecode(32, ResultMalformed, time.Microsecond)
	RecordDecode(32, ResultMalformed, time.Microsecond)
	after := testutil.ToFloat64(decodeMessages.WithLabelValues("32", ResultMalformed))
	if after-before != 2 {
		t.Fatalf("expected 2 increments, got %v", after-before)
	}

	fb := testutil.ToFloat64(groupFallbacks.WithLabelValues("33"))
	RecordGroupFallbacks(33, 3)
	if got := testutil.ToFloat64(groupFallbacks.WithLabelValues("33")) - fb; got != 3 {
		t.Fatalf("expected 3 fallbacks, got %v", got)
	}
}

func TestUnknownTemplatesShareOneSeries(t *testing.T) {
	RecordDecode(7000, ResultUnknownTemplate, time.Microsecond)
	series := testutil.CollectAndCount(decodeMessages)
	before := testutil.ToFloat64(decodeMessages.WithLabelValues(UnknownTemplateLabel, ResultUnknownTemplate))
	for id := uint16(7001); id < 7011; id++ {
		RecordDecode(id, ResultUnknownTemplate, time.Microsecond)
	}
	if got := testutil.CollectAndCount(decodeMessages); got != series {
		t.Fatalf("unknown ids added series: before=%d after=%d", series, got)
	}
	after := testutil.ToFloat64(decodeMessages.WithLabelValues(UnknownTemplateLabel, ResultUnknownTemplate))
	if after-before != 10 {
		t.Fatalf("expected 10 unknown decodes, got %v", after-before)
	}
}

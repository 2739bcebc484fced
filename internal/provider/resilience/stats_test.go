package resilience_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/servifield/servifield/internal/provider/resilience"
)

func TestOutcomeWindow_Empty(t *testing.T) {
	var w resilience.OutcomeWindow

	assert.Equal(t, 100.0, w.SuccessRate())
	assert.Equal(t, 0.0, w.AvgLatencyMs())
}

func TestOutcomeWindow_MixedOutcomes(t *testing.T) {
	var w resilience.OutcomeWindow

	w.Record(true, 10*time.Millisecond)
	w.Record(true, 20*time.Millisecond)
	w.Record(false, 60*time.Millisecond)
	w.Record(true, 30*time.Millisecond)

	assert.Equal(t, 75.0, w.SuccessRate())
	assert.Equal(t, 30.0, w.AvgLatencyMs())
}

func TestOutcomeWindow_EvictsOldOutcomes(t *testing.T) {
	var w resilience.OutcomeWindow

	for i := 0; i < 25; i++ {
		w.Record(false, time.Millisecond)
	}
	for i := 0; i < 50; i++ {
		w.Record(true, time.Millisecond)
	}

	assert.Equal(t, 100.0, w.SuccessRate())
}

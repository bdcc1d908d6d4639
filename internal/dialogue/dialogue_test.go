package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPriorityOrder(t *testing.T) {
	// "no!" matches intense; "hate" matches negative. intense must win.
	got := Classify("No! I hate this, run!")
	assert.Equal(t, EmotionIntense, got)
}

func TestClassifyRomanticOverComedicAndNegative(t *testing.T) {
	got := Classify("I hate that joke but I love you, my darling")
	assert.Equal(t, EmotionRomantic, got)
}

func TestClassifyNeutralFallback(t *testing.T) {
	got := Classify("The train arrives at eight.")
	assert.Equal(t, EmotionNeutral, got)
}

func TestEmotionalWeightTable(t *testing.T) {
	assert.Equal(t, 1.0, EmotionalWeight(EmotionIntense, true))
	assert.Equal(t, 0.8, EmotionalWeight(EmotionNegative, true))
	assert.Equal(t, 0.6, EmotionalWeight(EmotionRomantic, true))
	assert.Equal(t, 0.5, EmotionalWeight(EmotionPositive, true))
	assert.Equal(t, 0.4, EmotionalWeight(EmotionComedic, true))
	assert.Equal(t, 0.2, EmotionalWeight(EmotionNeutral, true))
	assert.Equal(t, 0.0, EmotionalWeight(EmotionNeutral, false))
}

func TestMidpointS(t *testing.T) {
	e := Event{StartMs: 1000, EndMs: 3000}
	assert.Equal(t, 2.0, e.MidpointS())
}

func TestNearestEventWithinWindow(t *testing.T) {
	events := []Event{
		NewEvent(0, 1000, "hello", ""),
		NewEvent(10000, 11000, "goodbye", ""),
	}
	ev, ok := NearestEvent(events, 0.7, 5.0)
	assert.True(t, ok)
	assert.Equal(t, "hello", ev.Plaintext)

	_, ok = NearestEvent(events, 5.0, 0.5)
	assert.False(t, ok)
}

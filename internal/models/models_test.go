package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCrowdLevelValid(t *testing.T) {
	assert.True(t, CrowdLow.Valid())
	assert.True(t, CrowdMedium.Valid())
	assert.True(t, CrowdHigh.Valid())
	assert.False(t, CrowdLevel("PACKED").Valid())
	assert.False(t, CrowdLevel("").Valid())
	assert.False(t, CrowdLevel("low").Valid())
}

func TestScheduleRunsOn(t *testing.T) {
	s := &Schedule{Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday}}

	assert.True(t, s.RunsOn(time.Monday))
	assert.True(t, s.RunsOn(time.Friday))
	assert.False(t, s.RunsOn(time.Sunday))

	empty := &Schedule{}
	assert.False(t, empty.RunsOn(time.Monday))
}

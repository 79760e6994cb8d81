package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		filter, topic string
		want          bool
	}{
		{"bmw/state/+", "bmw/state/WBA1", true},
		{"bmw/state/+", "bmw/state/WBA1/extra", false},
		{"bmw/#", "bmw/state/WBA1", true},
		{"bmw/#", "bmw", false},
		{"bmw/state", "bmw/state", true},
		{"bmw/state", "bmw/other", false},
		{"+/+", "a/b", true},
		{"a/+/c", "a/b", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Match(c.filter, c.topic), "%s vs %s", c.filter, c.topic)
	}
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "WBA1", LastSegment("bmw/state/WBA1"))
	assert.Equal(t, "WBA1", LastSegment("WBA1"))
	assert.Equal(t, "homeassistant/sensor/bmw/WBA1-mileage/config",
		Join("homeassistant/", "sensor", "/bmw/", "", "WBA1-mileage", "config"))
}

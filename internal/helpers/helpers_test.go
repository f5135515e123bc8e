package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{23.5, "23.5"},
		{20, "20"},
		{-4.125, "-4.125"},
		{0.0001, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.value))
	}
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://mosquitto:1883", BrokerURL("mosquitto", 1883))
	assert.Equal(t, "tcp://[::1]:1883", BrokerURL("::1", 1883))
}

func TestListenAddr(t *testing.T) {
	assert.Equal(t, ":9000", ListenAddr(9000))
}

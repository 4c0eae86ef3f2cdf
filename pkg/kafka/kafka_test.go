package kafka

import (
	"context"
	"testing"

	"github.com/siyabendoezdemir/m323/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type event struct {
		Type   string `json:"type"`
		Region string `json:"region"`
	}

	got, err := DecodeJSON[event]([]byte(`{"type":"distribution","region":"0"}`))
	require.NoError(t, err)
	assert.Equal(t, event{Type: "distribution", Region: "0"}, got)

	_, err = DecodeJSON[event]([]byte(`not json`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := NewProducer(config.KafkaConfig{}, "dashboard-query-events")
	defer p.Close()

	err := p.Ping(context.Background())
	assert.ErrorContains(t, err, "no kafka brokers configured")
}

package mqttconverter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/mqttconverter"
)

func TestMqttPublisher_Publish(t *testing.T) {
	mockClient := &mockMqttClient{}
	publisher, err := mqttconverter.NewMqttPublisher(testConfig(), zerolog.Nop(), mqttconverter.WithClientFactory(mockClient.factory))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, publisher.Connect(ctx))
	assert.True(t, publisher.IsConnected())

	require.NoError(t, publisher.Publish(ctx, []byte(`{"tweet_id": 1}`)))
	require.Len(t, mockClient.published, 1)
	assert.JSONEq(t, `{"tweet_id": 1}`, string(mockClient.published[0]))

	publisher.Close()
	assert.True(t, mockClient.disconnectCalled)
}

func TestMqttPublisher_ConnectError(t *testing.T) {
	mockClient := &mockMqttClient{connectErr: errors.New("not authorized")}
	publisher, err := mqttconverter.NewMqttPublisher(testConfig(), zerolog.Nop(), mqttconverter.WithClientFactory(mockClient.factory))
	require.NoError(t, err)

	err = publisher.Connect(context.Background())
	assert.ErrorContains(t, err, "not authorized")
}

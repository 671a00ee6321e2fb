package kafka

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestTopicsReady(t *testing.T) {
	require.True(t, topicsReady(map[string]error{"a": nil, "b": kafkago.TopicAlreadyExists}))
	require.False(t, topicsReady(map[string]error{"a": nil, "b": errors.New("boom")}))
	require.True(t, topicsReady(nil))
}

func TestWaitKafkaReady_Cancelled(t *testing.T) {
	// слушатель, которого сразу закрываем - гарантированно свободный и недоступный адрес
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = WaitKafkaReady(ctx, addr, 50*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifierPublish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	n := NewRedisNotifier(client)

	c := Change{Kind: KindGroup, ID: "g1", Revision: 4, Data: json.RawMessage(`{"id":"g1"}`)}
	payload, err := json.Marshal(c)
	require.NoError(t, err)
	mock.ExpectPublish("group:g1", string(payload)).SetVal(1)

	require.NoError(t, n.Publish(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisNotifierPublishError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	n := NewRedisNotifier(client)

	c := DeletedChange(KindBill, "b1")
	payload, _ := json.Marshal(c)
	mock.ExpectPublish("bill:b1", string(payload)).SetErr(errors.New("connection refused"))

	assert.Error(t, n.Publish(context.Background(), c))
}

func TestRedisDeliveryLog(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisDeliveryLog(client)
	ctx := context.Background()

	mock.ExpectExists("webhook:delivery:payment-1").SetVal(0)
	mock.ExpectSet("webhook:delivery:payment-1", "1", 24*time.Hour).SetVal("OK")
	mock.ExpectExists("webhook:delivery:payment-1").SetVal(1)

	seen, err := l.Seen(ctx, "payment-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, "payment-1", 24*time.Hour))

	seen, err = l.Seen(ctx, "payment-1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDeliveryLogError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisDeliveryLog(client)

	mock.ExpectExists("webhook:delivery:p").SetErr(errors.New("timeout"))
	_, err := l.Seen(context.Background(), "p")
	assert.Error(t, err)
}

func TestConnectRedisDisabled(t *testing.T) {
	assert.Nil(t, ConnectRedis(context.Background(), ""))
}

func TestLocalFeedDeliversOnlyToTopic(t *testing.T) {
	feed := NewLocalFeed()
	ctx, cancel := context.WithCancel(context.Background())

	groups, err := feed.Subscribe(ctx, KindGroup, "g1")
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, Change{Kind: KindGroup, ID: "g2"}))
	require.NoError(t, feed.Publish(ctx, Change{Kind: KindGroup, ID: "g1", Revision: 7}))

	select {
	case c := <-groups:
		assert.Equal(t, "g1", c.ID)
		assert.Equal(t, int64(7), c.Revision)
	case <-time.After(time.Second):
		t.Fatal("expected a change")
	}

	cancel()
	select {
	case _, ok := <-groups:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

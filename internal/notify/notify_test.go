package notify

import (
	"context"
	"os"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"studiopass/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}

func TestPublish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectPublish("studiopass:changes:bookings", `.*"table":"bookings".*`).SetVal(1)

	p := NewPublisher(db)
	p.Publish(ctx, "bookings", "insert", map[string]int{"id": 42})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishRedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectPublish("studiopass:changes:available_dates", `.*`).SetErr(assert.AnError)

	p := NewPublisher(db)
	// A Redis failure must not panic or propagate.
	p.Publish(ctx, "available_dates", "update", nil)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "studiopass:changes:passes", Channel("passes"))
}

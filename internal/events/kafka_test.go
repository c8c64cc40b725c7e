package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherHandleEvent(t *testing.T) {
	userID := uuid.New()
	event, err := NewAccountEvent(TypeRolesChanged, userID, map[string][]string{"roles": {"admin"}})
	require.NoError(t, err)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var decoded AccountEvent
		if err := json.Unmarshal(val, &decoded); err != nil {
			return err
		}
		if decoded.ID != event.ID || decoded.Type != TypeRolesChanged || decoded.UserID != userID {
			return fmt.Errorf("unexpected event %+v", decoded)
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "storefront.accounts", nil)
	require.NoError(t, publisher.HandleEvent(context.Background(), event))
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisherSendFailure(t *testing.T) {
	event, err := NewAccountEvent(TypeUserRegistered, uuid.New(), nil)
	require.NoError(t, err)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisherWithProducer(producer, "storefront.accounts", nil)
	err = publisher.HandleEvent(context.Background(), event)

	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	assert.Contains(t, err.Error(), TypeUserRegistered)
	require.NoError(t, publisher.Close())
}

func TestNewProducerConfig(t *testing.T) {
	config := NewProducerConfig()

	assert.True(t, config.Producer.Return.Successes)
	assert.True(t, config.Producer.Idempotent)
	assert.Equal(t, sarama.WaitForAll, config.Producer.RequiredAcks)
	assert.Equal(t, 1, config.Net.MaxOpenRequests)
	assert.NoError(t, config.Validate())
}

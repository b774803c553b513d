// Copyright 2024 The slimchain-go Authors
// This file is part of the slimchain-go library.
//
// The slimchain-go library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The slimchain-go library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the slimchain-go library. If not, see <http://www.gnu.org/licenses/>.

package network

import (
	"context"

	"github.com/Shopify/sarama"

	"github.com/slimchain-go/slimchain/log"
)

var eventBusLog = log.NewModuleLogger("network/eventbus")

// KafkaConfig configures the cross-process event bus a storage shard's
// replica set uses to fan StateUpdate and block-commit notifications out to
// observers beyond the gossip mesh (auditors, the chaindata indexer a
// deployment might run alongside the cluster) - the same role
// chaindatafetcher/event/kafka.KafkaBroker plays for the teacher.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// EventBus publishes Envelopes to a Kafka topic and lets other processes
// subscribe to them, independent of the peer-to-peer GossipRouter (which
// only reaches nodes directly connected over RPC).
type EventBus struct {
	producer sarama.AsyncProducer
	brokers  []string
	groupID  string
}

// NewEventBus dials every broker in cfg.Brokers and starts an async
// producer, mirroring KafkaBroker.newProducer's settings (local-ack,
// snappy compression) so publishing never blocks the caller on a full
// round trip to the broker.
func NewEventBus(cfg KafkaConfig) (*EventBus, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Return.Successes = false

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, err
	}
	go func() {
		for err := range producer.Errors() {
			eventBusLog.Warn("kafka publish failed", "err", err)
		}
	}()

	groupID := cfg.GroupID
	if groupID == "" {
		groupID = defaultGroupID
	}
	return &EventBus{producer: producer, brokers: cfg.Brokers, groupID: groupID}, nil
}

// Publish enqueues env for delivery on topic. Delivery is best-effort and
// asynchronous, matching KafkaBroker.Publish's fire-and-forget semantics.
func (b *EventBus) Publish(topic Topic, env *Envelope) {
	b.producer.Input() <- &sarama.ProducerMessage{
		Topic: string(topic),
		Key:   sarama.StringEncoder(env.ID.String()),
		Value: sarama.ByteEncoder(env.Encode()),
	}
}

// Subscribe joins groupID and delivers every Envelope published to topic to
// handler until ctx is cancelled, running the consume loop in its own
// goroutine.
func (b *EventBus) Subscribe(ctx context.Context, topic Topic, handler func(*Envelope)) error {
	config := sarama.NewConfig()
	config.Version = sarama.MaxVersion

	group, err := sarama.NewConsumerGroup(b.brokers, b.groupID, config)
	if err != nil {
		return err
	}

	go func() {
		defer group.Close()
		for ctx.Err() == nil {
			if err := group.Consume(ctx, []string{string(topic)}, &eventBusConsumer{handler: handler}); err != nil {
				eventBusLog.Warn("kafka consume loop exited", "topic", topic, "err", err)
			}
		}
	}()
	return nil
}

const defaultGroupID = "slimchain"

// Close stops the producer, dropping any buffered message that hasn't been
// acknowledged yet.
func (b *EventBus) Close() error {
	return b.producer.Close()
}

type eventBusConsumer struct {
	handler func(*Envelope)
}

func (eventBusConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (eventBusConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *eventBusConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			eventBusLog.Warn("dropping malformed kafka message", "err", err)
			session.MarkMessage(msg, "")
			continue
		}
		c.handler(env)
		session.MarkMessage(msg, "")
	}
	return nil
}

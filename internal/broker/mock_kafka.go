package appkafka

import (
	"context"
	"errors"
	"sync"

	"example.com/tinyfeed/internal/seed"
	"github.com/segmentio/kafka-go"
)

// MockKafka records written messages and serves a queue of messages to read.
// With Seeder set, seed jobs are executed as soon as they are written.
type MockKafka struct {
	Seeder          *seed.Seeder
	WrittenMessages []kafka.Message // stores messages written via WriteMessages
	ReadMessages    []kafka.Message // queue of messages to be read via ReadMessage
	ShouldFail      bool            // flag to simulate failures during write or read operations

	mu sync.Mutex
}

// WriteMessages records messages and runs seed jobs through Seeder.
func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}

	m.WrittenMessages = append(m.WrittenMessages, messages...)
	if m.Seeder == nil {
		return nil
	}
	for _, msg := range messages {
		p, err := DecodeSeedJob(msg)
		if err != nil {
			return err
		}
		if _, err := m.Seeder.Run(context.Background(), p); err != nil {
			return err
		}
	}
	return nil
}

// ReadMessage pops the next queued message.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	// Take the first message from the queue and remove it
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// Written returns a copy of the messages written so far.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.WrittenMessages...)
}

// Close is a no-op.
func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) Close() error { return nil }

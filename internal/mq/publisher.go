// Package mq 发布资助结算事件（Kafka）。
package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"grant-settlement-sol/internal/pkg/logger"
	pkgmq "grant-settlement-sol/internal/pkg/mq"
	"grant-settlement-sol/internal/pkg/utils"
	"grant-settlement-sol/internal/types"
)

const defaultSendTimeout = 5 * time.Second

// Publisher 发布结算事件。发布失败不影响已确认的链上结算，由调用方记录
type Publisher interface {
	Publish(ctx context.Context, events ...*SettlementEvent) error
}

type KafkaPublisherOption struct {
	Topic       string
	Partitions  int
	SendTimeout time.Duration // 单条消息等待 ack 的超时
}

type KafkaPublisher struct {
	producer    pkgmq.MessageProducer
	topic       string
	partitions  uint32
	sendTimeout time.Duration
}

var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer pkgmq.MessageProducer, opt KafkaPublisherOption) *KafkaPublisher {
	if opt.Partitions <= 0 {
		opt.Partitions = 1
	}
	if opt.SendTimeout <= 0 {
		opt.SendTimeout = defaultSendTimeout
	}
	return &KafkaPublisher{
		producer:    producer,
		topic:       opt.Topic,
		partitions:  uint32(opt.Partitions),
		sendTimeout: opt.SendTimeout,
	}
}

// partitionOf 同一学生的事件落在同一分区，保证顺序
func (p *KafkaPublisher) partitionOf(owner string) int32 {
	pk, err := types.TryPubkeyFromBase58(owner)
	if err != nil {
		return 0
	}
	return int32(utils.PartitionHashBytes(pk[:], p.partitions))
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...*SettlementEvent) error {
	if len(events) == 0 {
		return nil
	}

	jobs := make([]*pkgmq.KafkaJob, 0, len(events))
	for _, e := range events {
		value, err := EncodeSettlementEvent(e)
		if err != nil {
			return err
		}
		jobs = append(jobs, &pkgmq.KafkaJob{
			Topic:     p.topic,
			Partition: p.partitionOf(e.Owner),
			Key:       []byte(e.Owner),
			Value:     value,
		})
	}

	_, failed := pkgmq.SendKafkaJobs(ctx, p.producer, jobs, p.sendTimeout)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, fmt.Errorf("partition %d: %w", f.Job.Partition, f.Err))
	}
	logger.Warnf("[Publisher] %d/%d settlement events failed, topic=%s", len(failed), len(jobs), p.topic)
	return errors.Join(errs...)
}

// NopPublisher 未配置 Kafka 时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...*SettlementEvent) error { return nil }

// MemoryPublisher 记录已发布的事件，用于开发环境和测试
type MemoryPublisher struct {
	mu     sync.Mutex
	events []SettlementEvent
	err    error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith 让后续 Publish 返回 err（nil 恢复正常）
func (m *MemoryPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryPublisher) Publish(_ context.Context, events ...*SettlementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, e := range events {
		m.events = append(m.events, *e)
	}
	return nil
}

func (m *MemoryPublisher) Events() []SettlementEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SettlementEvent(nil), m.events...)
}

package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/pkg/utils"
)

const (
	defaultBatchSize = 16 * 1024
	defaultLingerMs  = 5
	adminTimeoutMs   = 10000
)

type TopicOption struct {
	Topic      string // topic名称
	Partitions int    // 分区数
}

type KafkaProducerOption struct {
	Brokers   string // Kafka broker 地址，多个用英文逗号分隔（如 "localhost:9092,localhost:9093"）
	BatchSize int    // 批处理大小（单位字节）
	LingerMs  int    // 批处理最大延迟（毫秒）；结算事件量小，建议 0~5ms
	Topics    []TopicOption
}

// NewKafkaProducer 创建 Kafka 生产者，缺失的 topic 会被自动创建
func NewKafkaProducer(opt KafkaProducerOption) (*kafka.Producer, error) {
	if opt.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers is empty")
	}
	if err := ensureTopics(opt); err != nil {
		return nil, err
	}

	batchSize := opt.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := opt.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}

	localIP, _ := utils.GetLocalIP()
	if localIP == "" {
		localIP = "unknown"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
		"client.id":         fmt.Sprintf("grant-settlement-%s", localIP),

		// 生产环境建议 SASL_SSL
		//"security.protocol": "SASL_SSL",
		//"sasl.mechanisms":   "SCRAM-SHA-256",

		// 可靠性保障：结算事件不允许丢失或乱序
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5, // 幂等场景下最大值为 5

		// 超时与重试
		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		"batch.size":        batchSize,
		"linger.ms":         lingerMs,
		"compression.type":  "none",
		"message.max.bytes": 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	logger.Infof("[mq] kafka producer created, brokers=%s, topics=%d", opt.Brokers, len(opt.Topics))
	return producer, nil
}

// ensureTopics 检查 topic 是否存在，不存在则按配置的分区数创建
func ensureTopics(opt KafkaProducerOption) error {
	if len(opt.Topics) == 0 {
		return nil
	}

	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	meta, err := adminClient.GetMetadata(nil, true, adminTimeoutMs)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	// 每个分区副本的数量
	replicationFactor := 1
	if len(meta.Brokers) > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] Kafka broker count = %d, using replication factor = %d", len(meta.Brokers), replicationFactor)

	var topicsToCreate []kafka.TopicSpecification
	for _, topic := range opt.Topics {
		if _, ok := meta.Topics[topic.Topic]; ok {
			continue
		}
		partitions := topic.Partitions
		if partitions <= 0 {
			partitions = 1
		}
		topicsToCreate = append(topicsToCreate, kafka.TopicSpecification{
			Topic:             topic.Topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}
	if len(topicsToCreate) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeoutMs*time.Millisecond)
	defer cancel()

	results, err := adminClient.CreateTopics(ctx, topicsToCreate)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, result := range results {
		if code := result.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
		}
		logger.Infof("[mq] topic %s ready", result.Topic)
	}
	return nil
}

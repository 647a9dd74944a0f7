// Package kafka 把编排器的任务进度事件发布到 Kafka。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/models"

	"github.com/segmentio/kafka-go"
)

// AgentLogTopic 是默认的进度事件主题。
const AgentLogTopic = "agent_logs"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// LogPublisher 封装了向 Kafka 发送任务日志的逻辑。
type LogPublisher struct {
	writer messageWriter
	topic  string
}

// NewLogPublisher 创建 LogPublisher，并在主题不存在时创建它。
func NewLogPublisher(cfg *config.KafkaConfig) (*LogPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("未配置 Kafka brokers")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = AgentLogTopic
	}
	if err := EnsureTopic(cfg.Brokers[0], topic); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return &LogPublisher{writer: writer, topic: topic}, nil
}

// EnsureTopic 连接 broker，主题不存在时以单分区单副本创建。
func EnsureTopic(broker, topic string) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka 初始化连接失败: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
	}
	for _, p := range partitions {
		if p.Topic == topic {
			return nil
		}
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("自动创建 Kafka 主题 %s 失败: %w", topic, err)
	}
	return nil
}

// Topic returns the topic events are written to.
func (p *LogPublisher) Topic() string {
	return p.topic
}

// LogTaskProgress 将 TaskLogEntry 序列化为 JSON 并发送到 Kafka，消息键为任务 ID。
func (p *LogPublisher) LogTaskProgress(ctx context.Context, entry *models.TaskLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.TaskID),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *LogPublisher) Close() error {
	return p.writer.Close()
}

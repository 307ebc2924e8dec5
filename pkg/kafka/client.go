// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"docrag/internal/config"
	"docrag/pkg/log"
	"docrag/pkg/tasks"
)

// MaxAttempts 是同一任务的最大处理次数。
const MaxAttempts = 3

// TaskProcessor 执行一个导入任务，使消费者与具体管道解耦。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// Producer 发送导入任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// ProduceIngestTask 发送一个导入任务到 Kafka。
func (p *Producer) ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ID),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// AttemptCounter 记录任务的失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, taskID string) (int64, error)
	Reset(ctx context.Context, taskID string)
}

type redisAttempts struct {
	rdb *redis.Client
}

// NewRedisAttempts 用 Redis 计数失败次数，计数 24 小时后过期。
func NewRedisAttempts(rdb *redis.Client) AttemptCounter {
	return &redisAttempts{rdb: rdb}
}

func attemptsKey(taskID string) string {
	return fmt.Sprintf("kafka:attempts:%s", taskID)
}

func (r *redisAttempts) Incr(ctx context.Context, taskID string) (int64, error) {
	n, err := r.rdb.Incr(ctx, attemptsKey(taskID)).Result()
	if err != nil {
		return 0, err
	}
	_ = r.rdb.Expire(ctx, attemptsKey(taskID), 24*time.Hour).Err()
	return n, nil
}

func (r *redisAttempts) Reset(ctx context.Context, taskID string) {
	_ = r.rdb.Del(ctx, attemptsKey(taskID)).Err()
}

// 重试与读取失败的等待时间，测试中会被置零。
var (
	retryBackoff = 2 * time.Second
	fetchBackoff = 5 * time.Second
)

// messageReader 是消费循环用到的 kafka.Reader 方法。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StartConsumer 启动一个 Kafka 消费者来处理导入任务，直到 ctx 取消。
// attempts 为 nil 时失败次数只在本进程内计数。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	consume(ctx, r, processor, attempts)
	log.Info("Kafka 消费者已停止")
}

func consume(ctx context.Context, r messageReader, processor TaskProcessor, attempts AttemptCounter) {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("从 Kafka 读取消息失败, %s 后重试: %v", fetchBackoff, err)
			if !sleep(ctx, fetchBackoff) {
				return
			}
			continue
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)
		if !handleMessage(ctx, m.Value, processor, attempts) {
			// 停机打断了任务，不提交 offset，重启后重新投递
			continue
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// handleMessage 处理一条消息，失败时原地重试直到 MaxAttempts，返回是否应提交 offset。
// 只有 ctx 取消时返回 false。
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, attempts AttemptCounter) bool {
	var task tasks.IngestTask
	if err := json.Unmarshal(value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	for local := int64(1); ; local++ {
		log.Infof("开始处理导入任务: ID=%s, Source=%s, Root=%s", task.ID, task.Source, task.Root)
		err := processor.Process(ctx, task)
		if err == nil {
			log.Infof("导入任务处理成功: ID=%s", task.ID)
			if attempts != nil {
				attempts.Reset(context.WithoutCancel(ctx), task.ID)
			}
			return true
		}
		if ctx.Err() != nil {
			log.Warnf("导入任务被停机打断, 不提交 offset: ID=%s", task.ID)
			return false
		}

		n := recordFailure(ctx, attempts, task.ID, local)
		log.Errorf("处理导入任务失败(第 %d 次): ID=%s, Error: %v", n, task.ID, err)
		if n >= MaxAttempts {
			log.Errorf("导入任务多次失败(>=%d)，提交 offset 放弃该任务: ID=%s", MaxAttempts, task.ID)
			if attempts != nil {
				attempts.Reset(context.WithoutCancel(ctx), task.ID)
			}
			return true
		}
		if !sleep(ctx, retryBackoff*time.Duration(n)) {
			return false
		}
	}
}

// recordFailure 返回任务累计的失败次数。计数器不可用时使用本地计数。
func recordFailure(ctx context.Context, attempts AttemptCounter, taskID string, local int64) int64 {
	if attempts == nil {
		return local
	}
	n, err := attempts.Incr(context.WithoutCancel(ctx), taskID)
	if err != nil {
		log.Warnf("记录任务失败次数失败: ID=%s, %v", taskID, err)
		return local
	}
	return n
}

// sleep 等待 d，ctx 先结束时返回 false。
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func brokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

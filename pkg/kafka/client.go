// Package kafka 提供了通过 Kafka 异步投递日志行的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"report-desk/internal/config"
	"report-desk/internal/model"
	"report-desk/pkg/log"
	"report-desk/pkg/tasks"
)

// LogRecorder 是消费端最终写入的目标，与具体的 sink 实现解耦。
type LogRecorder interface {
	LogRequest(ctx context.Context, row model.RequestLogRow)
	LogFeedback(ctx context.Context, row model.FeedbackLogRow)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 把日志行发布到 Kafka，发布失败只记录日志。
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewPublisher 初始化 Kafka 生产者。
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Publisher{writer: w, timeout: 10 * time.Second}
}

// LogRequest 发布一条请求日志事件。
func (p *Publisher) LogRequest(ctx context.Context, row model.RequestLogRow) {
	p.publish(ctx, tasks.LogEvent{Kind: tasks.KindRequest, Request: &row})
}

// LogFeedback 发布一条反馈日志事件。
func (p *Publisher) LogFeedback(ctx context.Context, row model.FeedbackLogRow) {
	p.publish(ctx, tasks.LogEvent{Kind: tasks.KindFeedback, Feedback: &row})
}

func (p *Publisher) publish(ctx context.Context, event tasks.LogEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化日志事件失败: %v", err)
		return
	}
	timeout := p.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
		log.Warnw("发布日志事件失败", "kind", event.Kind, "error", err)
	}
}

// Close 关闭生产者。
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Dispatch 解析一条消息并交给 recorder。格式错误的消息返回 error，调用方应直接提交跳过。
func Dispatch(ctx context.Context, value []byte, recorder LogRecorder) error {
	var event tasks.LogEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("无法解析日志事件: %w", err)
	}
	switch {
	case event.Kind == tasks.KindRequest && event.Request != nil:
		recorder.LogRequest(ctx, *event.Request)
	case event.Kind == tasks.KindFeedback && event.Feedback != nil:
		recorder.LogFeedback(ctx, *event.Feedback)
	default:
		return fmt.Errorf("未知的日志事件: kind=%q", event.Kind)
	}
	return nil
}

// StartConsumer 启动一个 Kafka 消费者，把日志事件写入 recorder，直到 ctx 结束。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, recorder LogRecorder) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
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

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			return
		}

		if err := Dispatch(ctx, m.Value, recorder); err != nil {
			log.Errorf("%v, offset %d", err, m.Offset)
		}
		// sink 本身吞掉写入错误，这里无论结果都提交，避免阻塞队列
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// internal/service/order/infrastructure/kafka_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageFetcher 是 *kafka.Reader 中消费者用到的部分
type MessageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventBroadcaster 接收从 Kafka 读到的订单事件
type EventBroadcaster interface {
	Broadcast(event *domain.OrderEvent) bool
}

// OrderFeedConsumer 是一个驱动适配器，监听订单事件主题并转发给实时推送。
// 多实例部署时每个实例使用独立的消费组，保证所有连接都能收到全部事件。
type OrderFeedConsumer struct {
	reader      MessageFetcher
	broadcaster EventBroadcaster
	tracer      trace.Tracer
	wg          sync.WaitGroup
}

func NewOrderFeedConsumer(reader MessageFetcher, broadcaster EventBroadcaster) *OrderFeedConsumer {
	return &OrderFeedConsumer{
		reader:      reader,
		broadcaster: broadcaster,
		tracer:      otel.Tracer("order-feed-consumer"),
	}
}

// Start 开始监听，直到 ctx 结束。
func (a *OrderFeedConsumer) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log := logger.Ctx(ctx)
		log.Info().Msg("✅ order feed consumer started")
		for {
			// 使用 FetchMessage 而不是 ReadMessage，以便更好地控制提交与退出
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("🛑 order feed consumer shutting down")
					return
				}
				log.Error().Err(err).Msg("could not read message, retrying")
				select {
				case <-time.After(time.Second): // 避免快速失败循环
				case <-ctx.Done():
					return
				}
				continue
			}

			a.processMessage(ctx, msg)

			if err := a.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("failed to commit message")
			}
		}
	}()
}

// Stop 等待消费循环退出并关闭 Reader，调用前应先取消 Start 的 ctx。
func (a *OrderFeedConsumer) Stop() error {
	a.wg.Wait()
	return a.reader.Close()
}

func (a *OrderFeedConsumer) processMessage(parentCtx context.Context, msg kafka.Message) {
	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)
	ctx, span := a.tracer.Start(ctx, "order-feed.ProcessMessage",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		))
	defer span.End()

	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// 无法解析的消息直接跳过
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to unmarshal order event, skipping")
		span.RecordError(err)
		return
	}
	if !a.broadcaster.Broadcast(&event) {
		logger.Ctx(ctx).Warn().Int64("order_id", event.OrderID).Msg("order feed queue full, event dropped")
	}
}

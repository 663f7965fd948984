package telegram

import (
	"context"
	"sync"
	"time"

	applog "karanbot/internal/platform/log"
)

// PollerConfig 长轮询配置
type PollerConfig struct {
	// PollTimeout 单次 getUpdates 挂起时长，默认 30s
	PollTimeout time.Duration
	// WorkerQueueSize 每个会话 worker 的待处理队列长度，默认 16
	WorkerQueueSize int
}

// Poller 长轮询调度器。
// 每个会话一个 worker goroutine，同一会话内消息串行处理，
// 不同会话之间并行。
type Poller struct {
	config  PollerConfig
	client  *Client
	handler *Handler

	mu      sync.Mutex
	workers map[int64]chan *Message
	wg      sync.WaitGroup
}

// NewPoller 创建调度器
func NewPoller(config PollerConfig, client *Client, handler *Handler) *Poller {
	if config.PollTimeout <= 0 {
		config.PollTimeout = 30 * time.Second
	}
	if config.WorkerQueueSize <= 0 {
		config.WorkerQueueSize = 16
	}
	return &Poller{
		config:  config,
		client:  client,
		handler: handler,
		workers: make(map[int64]chan *Message),
	}
}

// Run 阻塞运行长轮询直到 ctx 取消
func (p *Poller) Run(ctx context.Context) error {
	me, err := p.client.GetMe(ctx)
	if err != nil {
		return err
	}
	applog.Info("[Telegram] 🚀 Bot polling started", "username", me.Username, "bot_id", me.ID)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			applog.Info("[Telegram] Poller stopped")
			return nil
		default:
		}

		updates, next, err := p.client.GetUpdates(ctx, offset, p.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if IsPollTimeout(err) {
				continue
			}
			applog.Warn("[Telegram] ⚠️ Poll failed, backing off", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(3 * time.Second):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			if u.Message == nil || u.Message.Chat == nil {
				continue
			}
			if u.Message.From != nil && u.Message.From.IsBot {
				continue
			}
			p.dispatch(ctx, u.Message)
		}
	}
}

// dispatch 投递到会话 worker；队列满时丢弃并告警
func (p *Poller) dispatch(ctx context.Context, msg *Message) {
	p.mu.Lock()
	ch, ok := p.workers[msg.Chat.ID]
	if !ok {
		ch = make(chan *Message, p.config.WorkerQueueSize)
		p.workers[msg.Chat.ID] = ch
		p.wg.Add(1)
		go p.worker(ctx, msg.Chat.ID, ch)
	}
	p.mu.Unlock()

	select {
	case ch <- msg:
	default:
		applog.Warn("[Telegram] ⚠️ Chat queue full, dropping message",
			"chat_id", msg.Chat.ID,
			"message_id", msg.MessageID,
		)
	}
}

// worker 串行处理单个会话的消息
func (p *Poller) worker(ctx context.Context, chatID int64, ch chan *Message) {
	defer p.wg.Done()
	applog.Debug("[Telegram] Worker started", "chat_id", chatID)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			p.handler.Handle(ctx, msg)
		}
	}
}

// shutdown 等待所有 worker 退出
func (p *Poller) shutdown() {
	p.wg.Wait()
}

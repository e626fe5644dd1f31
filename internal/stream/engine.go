package stream

import (
	"context"
	"time"
)

const defaultInterval = 30 * time.Millisecond

// Sink 接收流式片段的落点，由会话层实现。
// Append 把片段追加到目标消息，Finalize 把消息定稿（streaming=false）。
type Sink interface {
	Append(messageID int64, piece string)
	Finalize(messageID int64)
}

// Engine 按固定节奏逐片吐出助手回答。
// 节奏只影响观感，不影响正确性；片段严格按提交顺序落地。
type Engine struct {
	interval time.Duration
}

func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Engine{interval: interval}
}

// Run 依次消费 pieces，每片经 sink.Append 落到目标消息，
// 全部吐完后调用 sink.Finalize。空序列立即定稿。
// 流一旦开始就跑到结束，不支持中断；ctx 取消只会跳过剩余的
// 节奏等待，把余下片段立刻冲完。
func (e *Engine) Run(ctx context.Context, messageID int64, pieces []string, sink Sink) {
	for piece := range e.pace(ctx, pieces) {
		sink.Append(messageID, piece)
	}
	sink.Finalize(messageID)
}

// pace 异步生成器：按 interval 的间隔往通道里送片段
func (e *Engine) pace(ctx context.Context, pieces []string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		flushing := false
		for i, piece := range pieces {
			out <- piece

			if i == len(pieces)-1 || flushing {
				continue
			}

			select {
			case <-time.After(e.interval):
			case <-ctx.Done():
				flushing = true
			}
		}
	}()

	return out
}

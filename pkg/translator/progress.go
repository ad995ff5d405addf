package translator

import (
	"fmt"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// Tracker 翻译进度跟踪接口
type Tracker interface {
	Start(totalChunks int)
	Advance(message string)
	Fail(err error)
	Complete()
}

// NoopTracker 不输出任何进度，供库内嵌入使用
type NoopTracker struct{}

func (NoopTracker) Start(int)      {}
func (NoopTracker) Advance(string) {}
func (NoopTracker) Fail(error)     {}
func (NoopTracker) Complete()      {}

// BarTracker 终端进度条，按分块计数
type BarTracker struct {
	writer progress.Writer
	chunks *progress.Tracker
	mu     sync.Mutex
}

// NewBarTracker 创建终端进度条
func NewBarTracker() *BarTracker {
	return &BarTracker{}
}

// Start 初始化进度条并启动渲染协程
func (t *BarTracker) Start(totalChunks int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pw := progress.NewWriter()
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Colors = progress.StyleColorsExample
	pw.Style().Options.PercentFormat = "%4.1f%%"
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Percentage = true
	pw.Style().Visibility.Value = true
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetTrackerLength(50)
	pw.SetMessageLength(20)
	pw.SetNumTrackersExpected(1)

	tracker := &progress.Tracker{
		Message: "翻译进行中",
		Total:   int64(totalChunks),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(tracker)

	t.writer = pw
	t.chunks = tracker

	go pw.Render()
}

// Advance 完成一个分块
func (t *BarTracker) Advance(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.chunks == nil {
		return
	}
	t.chunks.Increment(1)
	if message != "" {
		t.chunks.UpdateMessage(message)
	}
}

// Fail 标记失败并停止渲染
func (t *BarTracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.chunks == nil {
		return
	}
	t.chunks.UpdateMessage(fmt.Sprintf("翻译失败: %v", err))
	t.chunks.MarkAsErrored()
	t.writer.Stop()
}

// Complete 标记完成并停止渲染
func (t *BarTracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.chunks == nil {
		return
	}
	t.chunks.UpdateMessage("翻译完成")
	t.chunks.MarkAsDone()
	t.writer.Stop()
}

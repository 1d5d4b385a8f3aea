package callback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_RecordsCallLifecycle(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogger(zap.New(core))
	info := &callbacks.RunInfo{Name: "openai", Component: components.ComponentOfChatModel}

	ctx := l.OnStart(context.Background(), info, &einomodel.CallbackInput{
		Messages: []*schema.Message{schema.UserMessage("hi")},
	})
	l.OnEnd(ctx, info, &einomodel.CallbackOutput{
		Message:    schema.AssistantMessage("hello", nil),
		TokenUsage: &einomodel.TokenUsage{PromptTokens: 3, CompletionTokens: 1},
	})

	started := logs.FilterMessage("model call started").All()
	if len(started) != 1 || started[0].ContextMap()["messages"] != int64(1) {
		t.Fatalf("start log = %+v", started)
	}
	finished := logs.FilterMessage("model call finished").All()
	if len(finished) != 1 {
		t.Fatalf("finish logs = %d", len(finished))
	}
	fields := finished[0].ContextMap()
	if fields["prompt_tokens"] != int64(3) || fields["completion_tokens"] != int64(1) {
		t.Errorf("token usage fields = %v", fields)
	}
	if _, ok := fields["elapsed"]; !ok {
		t.Error("elapsed missing")
	}
}

func TestLogger_OnError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogger(zap.New(core))

	l.OnError(context.Background(), &callbacks.RunInfo{Name: "deepseek"}, errors.New("boom"))

	entries := logs.FilterMessage("model call failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["name"] != "deepseek" {
		t.Fatalf("error log = %+v", entries)
	}
}

func TestLogger_DrainsStreamCopy(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogger(zap.New(core))

	sr, sw := schema.Pipe[callbacks.CallbackOutput](3)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			sw.Send(&einomodel.CallbackOutput{Message: schema.AssistantMessage("x", nil)}, nil)
		}
		sw.Close()
	}()

	l.OnEndWithStreamOutput(context.Background(), &callbacks.RunInfo{Name: "openai"}, sr)
	<-done

	for i := 0; i < 100 && logs.FilterMessage("model stream finished").Len() == 0; i++ {
		// 读取协程异步完成
		<-time.After(10 * time.Millisecond)
	}
	entries := logs.FilterMessage("model stream finished").All()
	if len(entries) != 1 || entries[0].ContextMap()["chunks"] != int64(3) {
		t.Fatalf("stream log = %+v", entries)
	}
}

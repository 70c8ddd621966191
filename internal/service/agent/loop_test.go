package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// step 脚本化的一次模型应答
type step struct {
	msg *schema.Message
	err error
}

// fakeChatModel 按脚本应答的模型
type fakeChatModel struct {
	steps      []step
	calls      int
	boundTools []*schema.ToolInfo
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if m.calls >= len(m.steps) {
		return nil, errors.New("no scripted response left")
	}
	s := m.steps[m.calls]
	m.calls++
	return s.msg, s.err
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	m.boundTools = tools
	return m, nil
}

// fakeRunner 记录分发调用的工具执行器
type fakeRunner struct {
	dispatched []string
	owners     []string
	result     string
}

func (r *fakeRunner) Specs() []*schema.ToolInfo {
	return []*schema.ToolInfo{{Name: "add_task"}}
}

func (r *fakeRunner) Dispatch(ctx context.Context, ownerID, name, argumentsJSON string) json.RawMessage {
	r.dispatched = append(r.dispatched, name)
	r.owners = append(r.owners, ownerID)
	if r.result == "" {
		return json.RawMessage(`{"success":true}`)
	}
	return json.RawMessage(r.result)
}

func toolCallMsg(name, arguments string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{
		{
			ID: "call-1",
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: arguments,
			},
		},
	})
}

func newTestLoop(model *fakeChatModel, runner *fakeRunner, maxIterations int) *Loop {
	return NewLoop(model, runner, &Config{
		MaxIterations: maxIterations,
		ModelTimeout:  time.Second,
	})
}

// ========== Run 测试 ==========

func TestLoop_DirectAnswer(t *testing.T) {
	chatModel := &fakeChatModel{steps: []step{
		{msg: schema.AssistantMessage("Hello! How can I help with your tasks?", nil)},
	}}
	runner := &fakeRunner{}
	loop := newTestLoop(chatModel, runner, 5)

	result, err := loop.Run(context.Background(), "alice", []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Aborted {
		t.Error("Run() aborted on direct answer")
	}
	if result.Content != "Hello! How can I help with your tasks?" {
		t.Errorf("Run() content = %q", result.Content)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("Run() recorded %d tool calls, want 0", len(result.ToolCalls))
	}
	if len(chatModel.boundTools) != 1 {
		t.Errorf("Run() bound %d tools, want 1", len(chatModel.boundTools))
	}
}

func TestLoop_ToolCallRoundtrip(t *testing.T) {
	chatModel := &fakeChatModel{steps: []step{
		{msg: toolCallMsg("add_task", `{"title":"buy milk"}`)},
		{msg: schema.AssistantMessage("I've added 'buy milk' to your tasks.", nil)},
	}}
	runner := &fakeRunner{result: `{"success":true,"task_id":"task-1"}`}
	loop := newTestLoop(chatModel, runner, 5)

	result, err := loop.Run(context.Background(), "alice", []*schema.Message{schema.UserMessage("Add buy milk")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Aborted {
		t.Error("Run() aborted unexpectedly")
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("Run() recorded %d tool calls, want 1", len(result.ToolCalls))
	}

	record := result.ToolCalls[0]
	if record.Tool != "add_task" {
		t.Errorf("record.Tool = %s, want add_task", record.Tool)
	}
	if string(record.Arguments) != `{"title":"buy milk"}` {
		t.Errorf("record.Arguments = %s", record.Arguments)
	}
	if string(record.Result) != `{"success":true,"task_id":"task-1"}` {
		t.Errorf("record.Result = %s", record.Result)
	}

	// 分发携带认证用户而非模型参数中的身份
	if len(runner.owners) != 1 || runner.owners[0] != "alice" {
		t.Errorf("Dispatch owners = %v, want [alice]", runner.owners)
	}
}

func TestLoop_ToolErrorContinues(t *testing.T) {
	chatModel := &fakeChatModel{steps: []step{
		{msg: toolCallMsg("add_task", `{"title":""}`)},
		{msg: schema.AssistantMessage("That title looks empty, what should I call the task?", nil)},
	}}
	runner := &fakeRunner{result: `{"error":{"code":"validation","message":"task title must be 1-500 characters"}}`}
	loop := newTestLoop(chatModel, runner, 5)

	result, err := loop.Run(context.Background(), "alice", []*schema.Message{schema.UserMessage("add a task")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 工具失败是数据，循环继续并由模型解释
	if result.Aborted {
		t.Error("Run() aborted on tool error payload")
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("Run() recorded %d tool calls, want 1", len(result.ToolCalls))
	}
	if string(result.ToolCalls[0].Result) != runner.result {
		t.Errorf("record.Result = %s, want error payload", result.ToolCalls[0].Result)
	}
}

func TestLoop_IterationBound(t *testing.T) {
	// 模型永远要求调用工具，循环必须在上限处中止
	var steps []step
	for i := 0; i < 10; i++ {
		steps = append(steps, step{msg: toolCallMsg("add_task", `{"title":"again"}`)})
	}
	chatModel := &fakeChatModel{steps: steps}
	runner := &fakeRunner{}
	loop := newTestLoop(chatModel, runner, 3)

	result, err := loop.Run(context.Background(), "alice", []*schema.Message{schema.UserMessage("loop forever")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Aborted {
		t.Error("Run() did not abort at iteration bound")
	}
	if result.Content != FallbackResponse {
		t.Errorf("Run() content = %q, want fallback", result.Content)
	}
	if chatModel.calls != 3 {
		t.Errorf("model called %d times, want 3", chatModel.calls)
	}
	// 中止前已执行的工具调用仍保留在记录中
	if len(result.ToolCalls) != 3 {
		t.Errorf("Run() recorded %d tool calls, want 3", len(result.ToolCalls))
	}
}

func TestLoop_RetriesOnceOnModelError(t *testing.T) {
	chatModel := &fakeChatModel{steps: []step{
		{err: errors.New("connection reset")},
		{msg: schema.AssistantMessage("ok", nil)},
	}}
	loop := newTestLoop(chatModel, &fakeRunner{}, 5)

	result, err := loop.Run(context.Background(), "alice", []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Aborted {
		t.Error("Run() aborted although retry succeeded")
	}
	if chatModel.calls != 2 {
		t.Errorf("model called %d times, want 2", chatModel.calls)
	}
}

func TestLoop_AbortsWhenModelUnavailable(t *testing.T) {
	chatModel := &fakeChatModel{steps: []step{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
	}}
	loop := newTestLoop(chatModel, &fakeRunner{}, 5)

	result, err := loop.Run(context.Background(), "alice", []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Aborted {
		t.Error("Run() did not abort after retry failure")
	}
	if result.Content != FallbackResponse {
		t.Errorf("Run() content = %q, want fallback", result.Content)
	}
	if chatModel.calls != 2 {
		t.Errorf("model called %d times, want 2", chatModel.calls)
	}
}

func TestLoop_EmptyResponseAborts(t *testing.T) {
	chatModel := &fakeChatModel{steps: []step{
		{msg: schema.AssistantMessage("", nil)},
	}}
	loop := newTestLoop(chatModel, &fakeRunner{}, 5)

	result, err := loop.Run(context.Background(), "alice", []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Aborted {
		t.Error("Run() did not abort on empty response")
	}
	if result.Content != FallbackResponse {
		t.Errorf("Run() content = %q, want fallback", result.Content)
	}
}

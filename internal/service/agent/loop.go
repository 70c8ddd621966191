// Package agent 实现有界的工具调用推理循环
// 循环本身不持有任何持久状态，是 (系统指令, 消息历史, 工具集) 到
// (最终回复, 工具调用记录) 的纯函数
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ashwinyue/todo-chat/internal/model"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FallbackResponse 循环中止时返回的兜底回复
const FallbackResponse = "I wasn't able to complete that. Please try rephrasing your request."

const retryBackoff = 500 * time.Millisecond

// 循环状态机
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateExecutingTools
	stateFinalized
	stateAborted
)

// ToolRunner 工具分发接口
// 实现方保证失败编码在返回载荷中，不抛出错误
type ToolRunner interface {
	Specs() []*schema.ToolInfo
	Dispatch(ctx context.Context, ownerID, name, argumentsJSON string) json.RawMessage
}

// Config 循环配置
type Config struct {
	MaxIterations int           // 模型/工具往返次数上限
	ModelTimeout  time.Duration // 单次模型调用超时
}

// Loop 推理循环
type Loop struct {
	chatModel     einomodel.ToolCallingChatModel
	runner        ToolRunner
	maxIterations int
	modelTimeout  time.Duration
}

// NewLoop 创建推理循环
func NewLoop(chatModel einomodel.ToolCallingChatModel, runner ToolRunner, cfg *Config) *Loop {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 5
	}
	modelTimeout := cfg.ModelTimeout
	if modelTimeout <= 0 {
		modelTimeout = 30 * time.Second
	}
	return &Loop{
		chatModel:     chatModel,
		runner:        runner,
		maxIterations: maxIterations,
		modelTimeout:  modelTimeout,
	}
}

// Result 一轮对话的结果
type Result struct {
	Content   string
	ToolCalls model.ToolCallRecords
	Aborted   bool
}

// Run 驱动循环直到产生最终回复或中止
// history 已包含本轮用户消息；ownerID 来自认证层，传给每次工具分发
func (l *Loop) Run(ctx context.Context, ownerID string, history []*schema.Message) (*Result, error) {
	// Assembling: 绑定工具 schema，构建模型输入
	bound, err := l.chatModel.WithTools(l.runner.Specs())
	if err != nil {
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(SystemPrompt))
	messages = append(messages, history...)

	var (
		records      model.ToolCallRecords
		pendingCalls []schema.ToolCall
		finalText    string
	)

	state := stateAwaitingModel
	for iteration := 0; ; {
		switch state {
		case stateAwaitingModel:
			if iteration >= l.maxIterations {
				state = stateAborted
				continue
			}
			iteration++

			msg, err := l.callModel(ctx, bound, messages)
			if err != nil {
				log.Printf("model unavailable after retry: %v", err)
				state = stateAborted
				continue
			}
			messages = append(messages, msg)

			if len(msg.ToolCalls) > 0 {
				pendingCalls = msg.ToolCalls
				state = stateExecutingTools
				continue
			}
			if msg.Content == "" {
				state = stateAborted
				continue
			}
			finalText = msg.Content
			state = stateFinalized

		case stateExecutingTools:
			for _, call := range pendingCalls {
				result := l.runner.Dispatch(ctx, ownerID, call.Function.Name, call.Function.Arguments)
				records = append(records, model.ToolCallRecord{
					Tool:      call.Function.Name,
					Arguments: rawArguments(call.Function.Arguments),
					Result:    result,
				})
				messages = append(messages, schema.ToolMessage(string(result), call.ID))
			}
			pendingCalls = nil
			state = stateAwaitingModel

		case stateFinalized:
			return &Result{Content: finalText, ToolCalls: records}, nil

		case stateAborted:
			return &Result{Content: FallbackResponse, ToolCalls: records, Aborted: true}, nil
		}
	}
}

// callModel 单次模型调用，失败时退避后重试一次
func (l *Loop) callModel(ctx context.Context, chatModel einomodel.ToolCallingChatModel, messages []*schema.Message) (*schema.Message, error) {
	msg, err := l.generateOnce(ctx, chatModel, messages)
	if err == nil {
		return msg, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryBackoff):
	}

	return l.generateOnce(ctx, chatModel, messages)
}

func (l *Loop) generateOnce(ctx context.Context, chatModel einomodel.ToolCallingChatModel, messages []*schema.Message) (*schema.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.modelTimeout)
	defer cancel()
	return chatModel.Generate(callCtx, messages)
}

// rawArguments 保留模型给出的参数原文，非法 JSON 退化为字符串
func rawArguments(arguments string) json.RawMessage {
	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	quoted, _ := json.Marshal(arguments)
	return quoted
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/todo-chat/internal/config"
	"github.com/ashwinyue/todo-chat/internal/repository"
	"github.com/ashwinyue/todo-chat/internal/service/agent"
	"github.com/ashwinyue/todo-chat/internal/service/auth"
	"github.com/ashwinyue/todo-chat/internal/service/chat"
	"github.com/ashwinyue/todo-chat/internal/service/ratelimit"
	"github.com/ashwinyue/todo-chat/internal/service/tasks"
	"github.com/ashwinyue/todo-chat/internal/service/tools"
)

// Services 服务集合
type Services struct {
	Chat  *chat.Service
	Tasks *tasks.Service
	Auth  *auth.Service
	Tools *tools.Registry

	Config *config.Config
}

// NewServices 创建所有服务
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client) (*Services, error) {
	ctx := context.Background()

	taskSvc := tasks.NewService(repo.Task)
	registry := tools.NewRegistry(taskSvc)

	chatModel, err := newToolCallingChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	loop := agent.NewLoop(chatModel, registry, &agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		ModelTimeout:  time.Duration(cfg.Agent.ModelTimeout) * time.Second,
	})

	limiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.PerMinute, cfg.RateLimit.Enabled)

	return &Services{
		Chat:  chat.NewService(repo.Chat, loop, limiter, cfg.Agent.HistoryLimit),
		Tasks: taskSvc,
		Auth:  auth.NewService(repo.Auth),
		Tools: registry,

		Config: cfg,
	}, nil
}

// newToolCallingChatModel 创建支持工具调用的 ChatModel
func newToolCallingChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	aiCfg := cfg.AI

	var apiKey, baseURL, modelName string

	switch aiCfg.Provider {
	case "openai":
		apiKey = aiCfg.OpenAI.APIKey
		baseURL = aiCfg.OpenAI.BaseURL
		modelName = aiCfg.OpenAI.Model
	case "alibaba", "qwen", "dashscope":
		apiKey = aiCfg.Alibaba.AccessKeySecret
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		modelName = aiCfg.Alibaba.Model
	case "deepseek":
		apiKey = aiCfg.DeepSeek.APIKey
		baseURL = aiCfg.DeepSeek.BaseURL
		modelName = aiCfg.DeepSeek.Model
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", aiCfg.Provider)
	}

	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	temperature := float32(0.7)

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       modelName,
		Temperature: &temperature,
	})
}

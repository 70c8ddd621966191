package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ashwinyue/todo-chat/internal/model"
	"github.com/ashwinyue/todo-chat/internal/service/agent"
	"github.com/cloudwego/eino/schema"
	"gorm.io/gorm"
)

// memStore 内存会话存储
type memStore struct {
	convs map[string]*model.Conversation
	msgs  map[string][]*model.Message
}

func newMemStore() *memStore {
	return &memStore{
		convs: make(map[string]*model.Conversation),
		msgs:  make(map[string][]*model.Message),
	}
}

func (m *memStore) CreateConversation(conv *model.Conversation) error {
	m.convs[conv.ID] = conv
	return nil
}

func (m *memStore) GetConversationForUser(id, userID string) (*model.Conversation, error) {
	conv, ok := m.convs[id]
	if !ok || conv.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (m *memStore) ListConversationsByUser(userID string, offset, limit int) ([]*model.Conversation, error) {
	var result []*model.Conversation
	for _, conv := range m.convs {
		if conv.UserID == userID {
			result = append(result, conv)
		}
	}
	return result, nil
}

func (m *memStore) TouchConversation(id string) error {
	return nil
}

func (m *memStore) CreateMessage(msg *model.Message) error {
	m.msgs[msg.ConversationID] = append(m.msgs[msg.ConversationID], msg)
	return nil
}

func (m *memStore) GetMessagesForUser(conversationID, userID string) ([]*model.Message, error) {
	conv, ok := m.convs[conversationID]
	if !ok || conv.UserID != userID {
		return nil, nil
	}
	return m.msgs[conversationID], nil
}

// fakeLoop 记录输入历史的推理循环
type fakeLoop struct {
	result     *agent.Result
	err        error
	calls      int
	gotHistory []*schema.Message
}

func (f *fakeLoop) Run(ctx context.Context, ownerID string, history []*schema.Message) (*agent.Result, error) {
	f.calls++
	f.gotHistory = history
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &agent.Result{Content: "ok"}, nil
}

// fakeLimiter 固定应答的限流器
type fakeLimiter struct {
	allowed bool
}

func (f *fakeLimiter) Allow(ctx context.Context, ownerID string) (bool, error) {
	return f.allowed, nil
}

func newTestService(store ConversationStore, loop Runner) *Service {
	return NewService(store, loop, &fakeLimiter{allowed: true}, 50)
}

// ========== Chat 测试 ==========

func TestService_Chat_EmptyMessage(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeLoop{})

	for _, message := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Chat(context.Background(), "alice", &Request{Message: message}); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Chat(%q) error = %v, want ErrEmptyMessage", message, err)
		}
	}
	if len(store.convs) != 0 {
		t.Error("Chat() created a conversation for an empty message")
	}
}

func TestService_Chat_NewConversation(t *testing.T) {
	store := newMemStore()
	records := model.ToolCallRecords{
		{Tool: "add_task", Arguments: json.RawMessage(`{"title":"buy milk"}`), Result: json.RawMessage(`{"success":true}`)},
	}
	loop := &fakeLoop{result: &agent.Result{Content: "I've added 'buy milk' to your tasks.", ToolCalls: records}}
	svc := newTestService(store, loop)

	resp, err := svc.Chat(context.Background(), "alice", &Request{Message: "Add buy milk"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("Chat() did not return a conversation id")
	}
	if resp.Response != "I've added 'buy milk' to your tasks." {
		t.Errorf("Chat() response = %q", resp.Response)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Tool != "add_task" {
		t.Errorf("Chat() tool calls = %+v, want add_task record", resp.ToolCalls)
	}

	// 用户消息和助手消息按序持久化
	msgs := store.msgs[resp.ConversationID]
	if len(msgs) != 2 {
		t.Fatalf("Chat() persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].Content != "Add buy milk" {
		t.Errorf("first message = %s %q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != model.RoleAssistant {
		t.Errorf("second message role = %s, want assistant", msgs[1].Role)
	}
	if len(msgs[1].ToolCalls) != 1 {
		t.Errorf("assistant message has %d tool call records, want 1", len(msgs[1].ToolCalls))
	}
}

func TestService_Chat_ResumesConversation(t *testing.T) {
	store := newMemStore()
	loop := &fakeLoop{result: &agent.Result{Content: "first reply"}}
	svc := newTestService(store, loop)
	ctx := context.Background()

	resp, err := svc.Chat(ctx, "alice", &Request{Message: "hello"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	loop.result = &agent.Result{Content: "second reply"}
	resp2, err := svc.Chat(ctx, "alice", &Request{ConversationID: resp.ConversationID, Message: "and now?"})
	if err != nil {
		t.Fatalf("Chat() resume error = %v", err)
	}
	if resp2.ConversationID != resp.ConversationID {
		t.Errorf("Chat() resumed id = %s, want %s", resp2.ConversationID, resp.ConversationID)
	}

	// 第二轮的模型输入包含之前的完整历史加本轮消息
	if len(loop.gotHistory) != 3 {
		t.Fatalf("loop received %d history messages, want 3", len(loop.gotHistory))
	}
	if loop.gotHistory[0].Content != "hello" || loop.gotHistory[1].Content != "first reply" {
		t.Errorf("history = %q, %q", loop.gotHistory[0].Content, loop.gotHistory[1].Content)
	}
	if loop.gotHistory[2].Content != "and now?" {
		t.Errorf("history tail = %q, want the new message", loop.gotHistory[2].Content)
	}
}

func TestService_Chat_ConversationNotFound(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeLoop{})
	ctx := context.Background()

	if _, err := svc.Chat(ctx, "alice", &Request{ConversationID: "missing", Message: "hi"}); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Chat() unknown id error = %v, want ErrConversationNotFound", err)
	}

	// 他人会话与不存在的会话不可区分
	resp, err := svc.Chat(ctx, "alice", &Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if _, err := svc.Chat(ctx, "bob", &Request{ConversationID: resp.ConversationID, Message: "hi"}); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Chat() cross-user error = %v, want ErrConversationNotFound", err)
	}
}

func TestService_Chat_LoopFailureFallsBack(t *testing.T) {
	store := newMemStore()
	loop := &fakeLoop{err: errors.New("model exploded")}
	svc := newTestService(store, loop)

	resp, err := svc.Chat(context.Background(), "alice", &Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Chat() error = %v, want fallback instead", err)
	}
	if resp.Response != agent.FallbackResponse {
		t.Errorf("Chat() response = %q, want fallback", resp.Response)
	}

	// 兜底回复同样持久化，后续轮次历史保持完整
	msgs := store.msgs[resp.ConversationID]
	if len(msgs) != 2 || msgs[1].Content != agent.FallbackResponse {
		t.Errorf("persisted messages = %+v", msgs)
	}
}

func TestService_Chat_RateLimited(t *testing.T) {
	store := newMemStore()
	loop := &fakeLoop{}
	svc := NewService(store, loop, &fakeLimiter{allowed: false}, 50)

	resp, err := svc.Chat(context.Background(), "alice", &Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Response != agent.FallbackResponse {
		t.Errorf("Chat() response = %q, want fallback", resp.Response)
	}
	if loop.calls != 0 {
		t.Errorf("loop called %d times while rate limited, want 0", loop.calls)
	}
}

// ========== GetMessages 测试 ==========

func TestService_GetMessages(t *testing.T) {
	store := newMemStore()
	loop := &fakeLoop{result: &agent.Result{Content: "reply"}}
	svc := newTestService(store, loop)
	ctx := context.Background()

	resp, err := svc.Chat(ctx, "alice", &Request{Message: "hello"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	msgs, err := svc.GetMessages(ctx, "alice", resp.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("GetMessages() returned %d messages, want 2", len(msgs))
	}

	if _, err := svc.GetMessages(ctx, "bob", resp.ConversationID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("GetMessages() cross-user error = %v, want ErrConversationNotFound", err)
	}
	if _, err := svc.GetMessages(ctx, "alice", "missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("GetMessages() missing error = %v, want ErrConversationNotFound", err)
	}
}

// ========== ListConversations 测试 ==========

func TestService_ListConversations(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeLoop{})
	ctx := context.Background()

	svc.Chat(ctx, "alice", &Request{Message: "one"})
	svc.Chat(ctx, "alice", &Request{Message: "two"})
	svc.Chat(ctx, "bob", &Request{Message: "three"})

	convs, err := svc.ListConversations(ctx, "alice", 1, 20)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(convs) != 2 {
		t.Errorf("ListConversations() returned %d, want 2", len(convs))
	}
	for _, conv := range convs {
		if conv.UserID != "alice" {
			t.Errorf("ListConversations() leaked conversation of %s", conv.UserID)
		}
	}
}

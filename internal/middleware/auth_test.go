package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashwinyue/todo-chat/internal/model"
	"github.com/gin-gonic/gin"
)

// fakeValidator 固定应答的令牌校验器
type fakeValidator struct {
	user *model.User
	err  error
}

func (f *fakeValidator) ValidateToken(ctx context.Context, token string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

// newAuthedEngine 搭建带认证的测试引擎，记录处理器看到的用户 ID
func newAuthedEngine(validator TokenValidator) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	seenOwner := new(string)

	r := gin.New()
	r.Use(RequireAuth(validator))
	r.GET("/protected", func(c *gin.Context) {
		if id, ok := GetUserID(c); ok {
			*seenOwner = id
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, seenOwner
}

// ========== RequireAuth 测试 ==========

func TestRequireAuth_RejectsUnauthenticated(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{
			name:    "no credentials at all",
			headers: nil,
		},
		{
			name: "self-declared user id header only",
			// 自报的用户 ID 不是身份凭证，不能借此冒充他人
			headers: map[string]string{"X-User-ID": "victim-owner-id"},
		},
		{
			name:    "malformed authorization header",
			headers: map[string]string{"Authorization": "token abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, seenOwner := newAuthedEngine(&fakeValidator{err: errors.New("invalid token")})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if *seenOwner != "" {
				t.Errorf("handler saw owner %q, want request rejected before handler", *seenOwner)
			}
		})
	}
}

func TestRequireAuth_RejectsInvalidToken(t *testing.T) {
	r, seenOwner := newAuthedEngine(&fakeValidator{err: errors.New("token is revoked")})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	// 无效令牌时同样不得回退到自报身份
	req.Header.Set("X-User-ID", "victim-owner-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if *seenOwner != "" {
		t.Errorf("handler saw owner %q, want request rejected", *seenOwner)
	}
}

func TestRequireAuth_AcceptsValidToken(t *testing.T) {
	r, seenOwner := newAuthedEngine(&fakeValidator{user: &model.User{ID: "alice", Username: "alice"}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	// 伪造的 header 不覆盖令牌中的身份
	req.Header.Set("X-User-ID", "victim-owner-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if *seenOwner != "alice" {
		t.Errorf("handler saw owner %q, want alice", *seenOwner)
	}
}

// ========== Recovery 测试 ==========

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

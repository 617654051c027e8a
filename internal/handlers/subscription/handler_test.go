package subscription_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	subhandler "github.com/weatherhub/weather-updates-api/internal/handlers/subscription"
	"github.com/weatherhub/weather-updates-api/internal/models"
	"github.com/weatherhub/weather-updates-api/internal/repository/sqlite"
)

type mockService struct {
	subscribeToken string
	subscribeErr   error
	confirmErr     error
	unsubscribeErr error
}

func (m *mockService) Subscribe(_ context.Context, _ models.UserSubData) (string, error) {
	return m.subscribeToken, m.subscribeErr
}

func (m *mockService) Confirm(_ context.Context, _ string) error {
	return m.confirmErr
}

func (m *mockService) Unsubscribe(_ context.Context, _ string) error {
	return m.unsubscribeErr
}

func newRouter(svc *mockService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := subhandler.NewHandler(svc, zerolog.Nop())
	router.POST("/api/subscribe", h.Subscribe)
	router.GET("/api/confirm/:token", h.Confirm)
	router.GET("/api/unsubscribe/:token", h.Unsubscribe)
	return router
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validForm() url.Values {
	form := url.Values{}
	form.Set("email", "user@example.com")
	form.Set("city", "Kyiv")
	form.Set("frequency", "hourly")
	return form
}

func TestSubscribeEndpoint(t *testing.T) {
	t.Run("returns the token on success", func(t *testing.T) {
		router := newRouter(&mockService{subscribeToken: "tok-123"})

		w := postForm(router, "/api/subscribe", validForm())
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"token":"tok-123"`)
		assert.Contains(t, w.Body.String(), "Please check your email")
	})

	t.Run("missing fields", func(t *testing.T) {
		router := newRouter(&mockService{subscribeToken: "tok-123"})

		form := url.Values{}
		form.Set("email", "user@example.com")
		w := postForm(router, "/api/subscribe", form)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid frequency", func(t *testing.T) {
		router := newRouter(&mockService{subscribeToken: "tok-123"})

		form := validForm()
		form.Set("frequency", "weekly")
		w := postForm(router, "/api/subscribe", form)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate pair", func(t *testing.T) {
		router := newRouter(&mockService{subscribeErr: sqlite.ErrSubscriptionExists})

		w := postForm(router, "/api/subscribe", validForm())
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"Email already subscribed for this city"}`, w.Body.String())
	})

	t.Run("internal error stays generic", func(t *testing.T) {
		router := newRouter(&mockService{subscribeErr: errors.New("disk full: /var/db")})

		w := postForm(router, "/api/subscribe", validForm())
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "disk full")
	})
}

func TestConfirmEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		w := get(newRouter(&mockService{}), "/api/confirm/tok-123")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "confirmed successfully")
	})

	t.Run("unknown token", func(t *testing.T) {
		w := get(newRouter(&mockService{confirmErr: sqlite.ErrTokenNotFound}),
			"/api/confirm/no-such-token")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Token not found"}`, w.Body.String())
	})

	t.Run("already confirmed", func(t *testing.T) {
		w := get(newRouter(&mockService{confirmErr: sqlite.ErrAlreadyConfirmed}),
			"/api/confirm/tok-123")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Subscription already confirmed"}`, w.Body.String())
	})
}

func TestUnsubscribeEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		w := get(newRouter(&mockService{}), "/api/unsubscribe/tok-123")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Unsubscribed successfully")
	})

	t.Run("unknown token", func(t *testing.T) {
		w := get(newRouter(&mockService{unsubscribeErr: sqlite.ErrTokenNotFound}),
			"/api/unsubscribe/no-such-token")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

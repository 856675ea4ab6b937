package messages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, language.Russian, Match("ru-RU,ru;q=0.9,en;q=0.8"))
	assert.Equal(t, language.English, Match("en-US"))
	assert.Equal(t, language.English, Match(""))
	assert.Equal(t, language.English, Match("de-DE"))
}

func TestTextDefaultsToEnglish(t *testing.T) {
	assert.Equal(t, "Could not sign in", Text(context.Background(), LoginFailed))
}

func TestTextRussian(t *testing.T) {
	ctx := WithLanguage(context.Background(), language.Russian)
	assert.Equal(t, "Не удалось войти в аккаунт", Text(ctx, LoginFailed))
	assert.Equal(t, "Произошла непредвиденная ошибка", Text(ctx, Unexpected))
}

func TestEveryKeyHasBothLanguages(t *testing.T) {
	for key, texts := range entries {
		assert.NotEmpty(t, texts[0], key)
		assert.NotEmpty(t, texts[1], key)
	}
}

func TestMiddleware(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Text(r.Context(), RegisterFailed)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "Регистрация не удалась", got)
	assert.Equal(t, "ru", rec.Header().Get("Content-Language"))
}

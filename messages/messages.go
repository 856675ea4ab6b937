// Package messages holds the user-facing fallback texts shown when an
// upstream service fails without a message of its own, and picks the
// language from the request's Accept-Language header.
package messages

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a fallback message.
type Key string

const (
	LoginFailed         Key = "login_failed"
	RegisterFailed      Key = "register_failed"
	Unexpected          Key = "unexpected_error"
	SignInRequired      Key = "sign_in_required"
	UserFetchFailed     Key = "user_fetch_failed"
	NotificationsFailed Key = "notifications_failed"
	MarkReadFailed      Key = "mark_read_failed"
	StatusChangeFailed  Key = "status_change_failed"
	ServerUnreachable   Key = "server_unreachable"
	InvalidForm         Key = "invalid_form"
	TooManyAttempts     Key = "too_many_attempts"
	SignInTitle         Key = "sign_in_title"
	ForbiddenTitle      Key = "forbidden_title"
	ForbiddenText       Key = "forbidden_text"
	AdminTitle          Key = "admin_title"
	SignOut             Key = "sign_out"
)

var supported = []language.Tag{language.English, language.Russian}

var entries = map[Key][2]string{
	LoginFailed:         {"Could not sign in", "Не удалось войти в аккаунт"},
	RegisterFailed:      {"Registration failed", "Регистрация не удалась"},
	Unexpected:          {"An unexpected error occurred", "Произошла непредвиденная ошибка"},
	SignInRequired:      {"You need to sign in", "Необходимо войти в аккаунт!"},
	UserFetchFailed:     {"Could not load user data", "Не удалось получить данные пользователя"},
	NotificationsFailed: {"Could not load notifications", "Не удалось загрузить уведомления"},
	MarkReadFailed:      {"Could not mark the notification as read", "Не удалось отметить уведомление как прочитанное"},
	StatusChangeFailed:  {"Could not change the status", "Не удалось изменить статус"},
	ServerUnreachable:   {"Could not reach the server", "Не удалось подключиться к серверу"},
	InvalidForm:         {"Please check the form fields", "Проверьте правильность заполнения формы"},
	TooManyAttempts:     {"Too many failed attempts, try again later", "Слишком много неудачных попыток, попробуйте позже"},
	SignInTitle:         {"Sign in", "Вход"},
	ForbiddenTitle:      {"Access denied", "Доступ запрещён"},
	ForbiddenText:       {"You do not have permission to view this page", "У вас нет прав для просмотра этой страницы"},
	AdminTitle:          {"Administration", "Администрирование"},
	SignOut:             {"Sign out", "Выйти"},
}

var (
	cat     = buildCatalog()
	matcher = language.NewMatcher(supported)
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder()
	for key, texts := range entries {
		for i, tag := range supported {
			if err := b.SetString(tag, string(key), texts[i]); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Match returns the supported language closest to an Accept-Language value.
func Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Printer returns a printer for tag backed by the message catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

type contextKey struct{}

// WithLanguage stores tag on ctx.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, tag)
}

// Language returns the tag on ctx, English when none was negotiated.
func Language(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(contextKey{}).(language.Tag); ok {
		return tag
	}
	return supported[0]
}

// Text renders key in the language on ctx.
func Text(ctx context.Context, key Key) string {
	return Printer(Language(ctx)).Sprintf(string(key))
}

// Middleware negotiates the response language once per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := Match(r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Language", tag.String())
		next.ServeHTTP(w, r.WithContext(WithLanguage(r.Context(), tag)))
	})
}

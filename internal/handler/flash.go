package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	flashCookieName = "messages"
	flashContextKey = "flash.pending"
)

// Notice levels.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

// Notice is a one-shot message shown on the next page the caller loads.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// AddNotice queues a notice for the caller's next GET.
func AddNotice(c echo.Context, level, message string) {
	pending := append(pendingNotices(c), Notice{Level: level, Message: message})
	c.Set(flashContextKey, pending)
	writeFlashCookie(c, pending)
}

// DrainNotices returns the queued notices and clears them.
func DrainNotices(c echo.Context) []Notice {
	notices := pendingNotices(c)
	c.Set(flashContextKey, []Notice{})
	if _, err := c.Cookie(flashCookieName); err == nil {
		c.SetCookie(&http.Cookie{
			Name:     flashCookieName,
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
	if notices == nil {
		notices = []Notice{}
	}
	return notices
}

// redirectWithNotice answers 303 See Other to path and queues a notice.
func redirectWithNotice(c echo.Context, path, level, message string) error {
	AddNotice(c, level, message)
	return c.Redirect(http.StatusSeeOther, path)
}

func pendingNotices(c echo.Context) []Notice {
	if queued, ok := c.Get(flashContextKey).([]Notice); ok {
		return queued
	}
	cookie, err := c.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var notices []Notice
	if err := json.Unmarshal(raw, &notices); err != nil {
		return nil
	}
	return notices
}

func writeFlashCookie(c echo.Context, notices []Notice) {
	raw, err := json.Marshal(notices)
	if err != nil {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

package config

const (
	HCType        = "Content-Type"
	HCacheControl = "Cache-Control"

	CTypeHTML = "text/html; charset=utf-8"
	CTypeJSON = "application/json"
	CTypeSSE  = "text/event-stream"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieEditorSession = "editor-session"
)

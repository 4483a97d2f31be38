package middlewares

// gin context keys
const (
	CtxRequestID    = "request_id"
	CtxUserID       = "auth.userID"
	CtxRole         = "auth.role"
	CtxTokenID      = "auth.jti"
	CtxTokenExpiry  = "auth.exp"
	CtxExposeErrors = "errors.expose"
)

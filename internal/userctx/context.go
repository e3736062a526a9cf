package userctx

import "context"

type contextKey string

const (
	subjectContextKey contextKey = "subject"
	roleContextKey    contextKey = "role"
	clientIPKey       contextKey = "client_ip"
	requestIDKey      contextKey = "request_id"
)

const RoleAdmin = "admin"

// WithPrincipal stores the authenticated subject and its role.
func WithPrincipal(ctx context.Context, subject, role string) context.Context {
	ctx = context.WithValue(ctx, subjectContextKey, subject)
	return context.WithValue(ctx, roleContextKey, role)
}

func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok && subject != ""
}

func GetRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey).(string)
	return role, ok
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ActorKey identifies the caller for per-caller limits: the token subject when
// authenticated, else the client IP.
func ActorKey(ctx context.Context) string {
	if sub, ok := GetSubject(ctx); ok {
		return "sub:" + sub
	}
	if ip := GetClientIP(ctx); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

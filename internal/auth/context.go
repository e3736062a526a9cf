package auth

import (
	"context"

	"github.com/Somchit-cmd/adminawaylog/internal/userctx"
)

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return userctx.WithPrincipal(ctx, p.Subject, p.Role)
}

func GetSubject(ctx context.Context) (string, bool) {
	return userctx.GetSubject(ctx)
}

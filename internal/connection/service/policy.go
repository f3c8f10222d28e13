package service

import (
	"context"

	"civicid/internal/connection/models"
)

// AcceptPolicy decides whether a connection request moves straight to active.
// Declined requests wait in request_received for Accept.
type AcceptPolicy interface {
	ShouldAccept(ctx context.Context, conn *models.Connection) bool
}

// AlwaysAccept accepts every request.
type AlwaysAccept struct{}

func (AlwaysAccept) ShouldAccept(context.Context, *models.Connection) bool { return true }

// AcceptPolicyFunc adapts a function to AcceptPolicy.
type AcceptPolicyFunc func(ctx context.Context, conn *models.Connection) bool

func (f AcceptPolicyFunc) ShouldAccept(ctx context.Context, conn *models.Connection) bool {
	return f(ctx, conn)
}

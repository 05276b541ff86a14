package client

import (
	"context"

	"github.com/menta2k/avatar-cropper/pkg/types"
)

// AccountClient is the account backend the avatar forms submit to
type AccountClient interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.User, error)
	Login(ctx context.Context, req types.LoginRequest) (*types.User, error)
	Me(ctx context.Context) (*types.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error)
}

package oauth

import (
	"context"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

// Flow ties the callback listener to a token client. Adapters embed it to
// get Authenticate and RefreshToken.
type Flow struct {
	client   *Client
	callback CallbackOptions
	logger   logger.Logger
}

func NewFlow(client *Client, callback CallbackOptions, log logger.Logger) *Flow {
	return &Flow{client: client, callback: callback, logger: log}
}

// Authenticate runs the interactive flow and exchanges the code.
func (f *Flow) Authenticate(ctx context.Context) (adapter.Credentials, error) {
	code, redirectURI, err := WaitForCode(ctx, f.callback, f.client.AuthCodeURL, f.logger)
	if err != nil {
		return adapter.Credentials{}, err
	}
	return f.client.Exchange(ctx, code, redirectURI)
}

// RefreshToken runs the refresh grant.
func (f *Flow) RefreshToken(ctx context.Context, refreshToken string) (adapter.Credentials, error) {
	return f.client.Refresh(ctx, refreshToken)
}

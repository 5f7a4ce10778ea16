package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/nmspgate/pkg/lang"
)

// ErrPaymentRequired is returned when policy demands a subscription the
// account does not have.
var ErrPaymentRequired = errors.New("auth: subscription required")

// Identity is the authenticated caller of one upload.
type Identity struct {
	Token      string
	Language   lang.Resolution
	Subscribed bool
	UID        string

	// Debug reports that audio and transcript may be stored for this user.
	// It is never set without a UID.
	Debug bool
}

// LogValue keeps the access token out of logs.
func (id Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("uid", id.UID),
		slog.String("language", id.Language.Language),
		slog.String("model", id.Language.Model),
		slog.Bool("subscribed", id.Subscribed),
		slog.Bool("debug", id.Debug),
	)
}

// Gate turns a request host into an [Identity].
type Gate struct {
	accounts            AccountSource
	requireSubscription bool
}

// NewGate returns a Gate resolving tokens through accounts. When
// requireSubscription is set, unsubscribed accounts are refused.
func NewGate(accounts AccountSource, requireSubscription bool) *Gate {
	return &Gate{accounts: accounts, requireSubscription: requireSubscription}
}

// Authenticate parses host, looks up the account and applies policy.
func (g *Gate) Authenticate(ctx context.Context, host string) (*Identity, error) {
	token, code, err := ParseHost(host)
	if err != nil {
		return nil, err
	}

	acct, err := g.accounts.Account(ctx, token)
	if err != nil {
		return nil, err
	}
	if g.requireSubscription && !acct.IsSubscribed {
		return nil, fmt.Errorf("%w (uid %q)", ErrPaymentRequired, acct.UID)
	}

	id := &Identity{
		Token:      token,
		Language:   lang.Resolve(code),
		Subscribed: acct.IsSubscribed,
		UID:        string(acct.UID),
		Debug:      acct.AudioDebugMode,
	}
	if id.Debug && id.UID == "" {
		slog.Warn("auth: debug mode without uid, disabling")
		id.Debug = false
	}
	return id, nil
}

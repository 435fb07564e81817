package billing

import (
	"context"
	"encoding/base64"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	apperrors "machtms/internal/errors"
)

// Sender delivers a raw RFC 2822 message from the organization's
// connected account. It returns the token actually used so refreshed
// credentials can be persisted.
type Sender interface {
	Send(ctx context.Context, credential *GmailCredential, raw []byte) (*oauth2.Token, error)
}

// GmailSender sends invoice email through the Gmail API using the
// organization's stored OAuth tokens.
type GmailSender struct {
	oauth *oauth2.Config
}

// NewGmailSender builds the sender from the OAuth application
// registered with Google.
func NewGmailSender(clientID, clientSecret, redirectURL string) *GmailSender {
	return &GmailSender{oauth: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}}
}

// AuthURL returns the consent page URL that starts the connect flow.
// Offline access is requested so a refresh token comes back.
func (g *GmailSender) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the callback code for a token pair.
func (g *GmailSender) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExternalService, err, "exchange gmail oauth code")
	}
	return token, nil
}

// Send delivers the message as the connected account.
func (g *GmailSender) Send(ctx context.Context, credential *GmailCredential, raw []byte) (*oauth2.Token, error) {
	token := &oauth2.Token{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
	}
	if credential.TokenExpiry != nil {
		token.Expiry = *credential.TokenExpiry
	}
	source := g.oauth.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExternalService, err, "build gmail client")
	}
	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := service.Users.Messages.Send("me", message).Context(ctx).Do(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExternalService, err, "send invoice email")
	}

	refreshed, err := source.Token()
	if err != nil {
		// The send already went out; keep the old token.
		return token, nil
	}
	return refreshed, nil
}

var _ Sender = (*GmailSender)(nil)

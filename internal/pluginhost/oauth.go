package pluginhost

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/nymea-go/thingd/internal/shared/infrastructure/crypto"
	"github.com/nymea-go/thingd/pkg/ids"
)

// OAuthTokenRepository persists encrypted OAuth tokens keyed by the
// Thing that owns them, generalizing
// internal/identity/application/oauth.TokenRepository from a user
// identity to a configured Thing (a OAuth-paired Thing, e.g. a cloud
// HVAC controller, has exactly one token, not one per user).
type OAuthTokenRepository interface {
	Save(ctx context.Context, token StoredThingToken) error
	FindByThing(ctx context.Context, thingID ids.ThingID) (*StoredThingToken, error)
}

// StoredThingToken is the encrypted representation of a Thing's OAuth
// token.
type StoredThingToken struct {
	ThingID      ids.ThingID
	VendorName   string
	AccessToken  []byte
	RefreshToken []byte
	TokenType    string
	Expiry       time.Time
	Scopes       []string
}

// OAuthService drives the SetupMethodOAuth pairing flow for one plugin
// vendor, adapted from internal/identity/application/oauth.Service by
// substituting ids.ThingID for uuid.UUID-keyed users.
type OAuthService struct {
	oauthConfig *oauth2.Config
	vendorName  string
	scopes      []string
	repo        OAuthTokenRepository
	encrypter   crypto.Encrypter
}

// NewOAuthService constructs an OAuthService for one plugin vendor's
// OAuth endpoint.
func NewOAuthService(vendorName, clientID, clientSecret, authURL, tokenURL, redirectURL string, scopes []string, repo OAuthTokenRepository, encrypter crypto.Encrypter) (*OAuthService, error) {
	if vendorName == "" {
		return nil, fmt.Errorf("pluginhost: oauth vendor name is required")
	}
	if clientID == "" || clientSecret == "" || authURL == "" || tokenURL == "" || redirectURL == "" {
		return nil, fmt.Errorf("pluginhost: oauth configuration is incomplete")
	}
	if repo == nil || encrypter == nil {
		return nil, fmt.Errorf("pluginhost: oauth dependencies are required")
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}

	return &OAuthService{oauthConfig: cfg, vendorName: vendorName, scopes: scopes, repo: repo, encrypter: encrypter}, nil
}

// AuthURL returns the provider authorization URL a Pairer surfaces to
// the user via PairingInfo.OAuthURL.
func (s *OAuthService) AuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeAndStore exchanges an authorization code for a token and
// persists it encrypted against thingID, completing ConfirmPairing.
func (s *OAuthService) ExchangeAndStore(ctx context.Context, thingID ids.ThingID, code string) (*oauth2.Token, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: oauth exchange: %w", err)
	}

	accessEnc, err := s.encrypter.Encrypt([]byte(token.AccessToken))
	if err != nil {
		return nil, err
	}

	var refreshEnc []byte
	if token.RefreshToken != "" {
		refreshEnc, err = s.encrypter.Encrypt([]byte(token.RefreshToken))
		if err != nil {
			return nil, err
		}
	}

	stored := StoredThingToken{
		ThingID:      thingID,
		VendorName:   s.vendorName,
		AccessToken:  accessEnc,
		RefreshToken: refreshEnc,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		Scopes:       s.scopes,
	}

	if err := s.repo.Save(ctx, stored); err != nil {
		return nil, fmt.Errorf("pluginhost: store oauth token: %w", err)
	}

	return token, nil
}

// TokenSource returns a refreshing token source for thingID, which a
// plugin's ActionExecutor/Discoverer uses to authenticate outbound
// requests to the vendor's cloud API.
func (s *OAuthService) TokenSource(ctx context.Context, thingID ids.ThingID) (oauth2.TokenSource, error) {
	token, err := s.loadToken(ctx, thingID)
	if err != nil {
		return nil, err
	}
	return s.oauthConfig.TokenSource(ctx, token), nil
}

func (s *OAuthService) loadToken(ctx context.Context, thingID ids.ThingID) (*oauth2.Token, error) {
	stored, err := s.repo.FindByThing(ctx, thingID)
	if err != nil {
		return nil, err
	}

	access, err := s.encrypter.Decrypt(stored.AccessToken)
	if err != nil {
		return nil, err
	}

	refresh := ""
	if len(stored.RefreshToken) > 0 {
		refreshBytes, err := s.encrypter.Decrypt(stored.RefreshToken)
		if err != nil {
			return nil, err
		}
		refresh = string(refreshBytes)
	}

	return &oauth2.Token{
		AccessToken:  string(access),
		RefreshToken: refresh,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}, nil
}

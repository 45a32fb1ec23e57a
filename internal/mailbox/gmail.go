// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mailbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// GmailSource reads alert emails over the Gmail REST API.
type GmailSource struct {
	service *gmail.Service
}

// NewGmailSource authenticates from the stored OAuth files and returns
// a ready source. A missing token file surfaces as ErrNoToken so the
// caller can point the user at setup.
func NewGmailSource(ctx context.Context, cfg types.MailboxConfig) (*GmailSource, error) {
	oauthCfg, err := LoadOAuthConfig(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	tok, err := TokenFromFile(cfg.Token)
	if err != nil {
		return nil, err
	}
	service, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return &GmailSource{service: service}, nil
}

// NewGmailSourceWithService wires an existing service, used by tests
// to point at a local fixture server.
func NewGmailSourceWithService(service *gmail.Service) *GmailSource {
	return &GmailSource{service: service}
}

// Fetch lists messages matching the alert query and downloads each in
// full. Gmail pages the listing; every page is consumed.
func (s *GmailSource) Fetch(ctx context.Context, since time.Time) ([]types.Email, error) {
	var ids []string
	call := s.service.Users.Messages.List("me").Q(BuildQuery(since))
	err := call.Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, m := range page.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing alert emails: %w", asAuthErr(err))
	}

	emails := make([]types.Email, 0, len(ids))
	for _, id := range ids {
		msg, err := s.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("fetching email %s: %w", id, asAuthErr(err))
		}
		emails = append(emails, decodeEmail(msg))
	}
	return emails, nil
}

// Probe makes one cheap authenticated call so setup can confirm the
// stored token works.
func (s *GmailSource) Probe(ctx context.Context) error {
	_, err := s.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("probing gmail: %w", asAuthErr(err))
	}
	return nil
}

// asAuthErr folds Google API 401/403 responses onto the shared auth
// sentinel so callers handle every credential failure one way.
func asAuthErr(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %v", httputil.ErrAuth, err)
		}
	}
	return err
}

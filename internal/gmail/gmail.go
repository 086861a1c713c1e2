package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/Sectonic/Automation/internal/config"
	appLog "github.com/Sectonic/Automation/internal/log"
	"github.com/Sectonic/Automation/internal/model"
)

// authorizedUser is the relevant subset of the token JSON produced by
// the OAuth installed-app flow, wrapped under an "installed" key.
type authorizedUser struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		RefreshToken string `json:"refresh_token"`
	} `json:"installed"`
}

// Account is a read-only client for one Gmail mailbox.
type Account struct {
	svc       *gmailapi.Service
	userIndex int
	label     string
}

// NewAccount builds a mailbox client from the account config, reading
// the token from the configured file or, when the file is absent, from
// the named environment variable.
func NewAccount(ctx context.Context, cfg config.GmailAccount) (*Account, error) {
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		if cfg.TokenEnv == "" {
			return nil, fmt.Errorf("gmail: read token %s: %w", cfg.TokenFile, err)
		}
		env := os.Getenv(cfg.TokenEnv)
		if env == "" {
			return nil, fmt.Errorf("gmail: token file %s missing and %s is not set", cfg.TokenFile, cfg.TokenEnv)
		}
		data = []byte(env)
	}

	var token authorizedUser
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("gmail: parse token: %w", err)
	}
	if token.Installed.RefreshToken == "" {
		return nil, errors.New("gmail: token has no refresh_token")
	}

	conf := &oauth2.Config{
		ClientID:     token.Installed.ClientID,
		ClientSecret: token.Installed.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailapi.GmailReadonlyScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token.Installed.RefreshToken})

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}

	return &Account{svc: svc, userIndex: cfg.UserIndex, label: cfg.Label}, nil
}

// Label returns the origin label attached to records from this account.
func (a *Account) Label() string {
	return a.label
}

// Fetch lists messages received inside the window and normalizes each
// into a SourceRecord with a deep link back to the message.
func (a *Account) Fetch(ctx context.Context, window model.SyncWindow) ([]model.SourceRecord, error) {
	q := fmt.Sprintf("after:%d before:%d", window.Start.Unix(), window.End.Unix())

	listed, err := a.svc.Users.Messages.List("me").Q(q).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: list messages: %w", err)
	}

	records := make([]model.SourceRecord, 0, len(listed.Messages))
	for _, m := range listed.Messages {
		msg, err := a.svc.Users.Messages.Get("me", m.Id).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail: get message %s: %w", m.Id, err)
		}

		headers := map[string]string{}
		if msg.Payload != nil {
			for _, h := range msg.Payload.Headers {
				headers[strings.ToLower(h.Name)] = h.Value
			}
		}

		records = append(records, model.SourceRecord{
			From:    headers["from"],
			Subject: headers["subject"],
			Snippet: msg.Snippet,
			Link:    messageLink(headers["message-id"], msg.ThreadId, a.userIndex),
			Source:  a.label,
		})
	}

	appLog.Info("gmail fetch completed", "label", a.label, "count", len(records))
	return records, nil
}

// messageLink builds a Gmail web link for the message: an exact
// rfc822msgid search when a Message-ID header is present, otherwise a
// thread link.
func messageLink(messageID, threadID string, userIndex int) string {
	if messageID != "" {
		clean := strings.Trim(messageID, "<>")
		return fmt.Sprintf("https://mail.google.com/mail/u/%d/#search/rfc822msgid%%3A%s", userIndex, url.QueryEscape(clean))
	}
	return fmt.Sprintf("https://mail.google.com/mail/u/%d/#inbox/%s", userIndex, threadID)
}

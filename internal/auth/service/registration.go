package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/mail"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/idx"
	"github.com/syla-app/syla-auth/pkg/slogx"
)

// ErrUsernameTaken reports a registration attempt for a name that already
// belongs to a user.
var ErrUsernameTaken = errors.New("username taken")

// ErrInvalidRegistration reports a registration request that fails the basic
// field checks before any store work happens.
var ErrInvalidRegistration = errors.New("invalid registration")

// RegistrationService runs the e-mail registration flow: park the requested
// attributes in a single-use exchange slot, mail a short-lived verification
// link, and on verification create the user record and open a session.
// No user row exists until the link is followed.
type RegistrationService struct {
	Store     store.Store
	Users     store.Users
	Usernames store.Usernames
	Mail      mail.Sender
	Tokens    *TokenService
}

// Begin validates the requested attributes, reserves nothing, and parks the
// registration behind a verification link sent to the given address. The
// username check is advisory at this point; the authoritative uniqueness
// check happens at Complete when the row is inserted.
func (s *RegistrationService) Begin(ctx context.Context, reg domain.PendingRegistration) error {
	l := slogx.FromContext(ctx)

	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Email == "" || !strings.Contains(reg.Email, "@") {
		return ErrInvalidRegistration
	}

	taken, err := s.usernameTaken(ctx, reg.Username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}

	exchangeID, err := s.Store.RegistrationExchanges().Open(ctx, reg.Payload())
	if err != nil {
		return err
	}

	token, err := s.Tokens.IssueVerificationToken(exchangeID)
	if err != nil {
		return fmt.Errorf("sign verification token: %w", err)
	}

	if err := s.Mail.SendVerificationLink(ctx, reg.Email, token); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}

	l.Info("registration opened", "username", reg.Username)
	return nil
}

// Complete verifies the link token, consumes the parked registration exactly
// once, creates the user record and issues a first session for it. A reused
// or stale link fails at the exchange consume with store.ErrNotFound.
func (s *RegistrationService) Complete(ctx context.Context, verificationToken string) (domain.User, domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Tokens.VerifyVerificationToken(verificationToken)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	payload, err := s.Store.RegistrationExchanges().Consume(ctx, claims.Subject)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	reg := domain.PendingRegistrationFromPayload(payload)

	now := time.Now().UTC()
	user := domain.User{
		ID:            idx.New().String(),
		Username:      reg.Username,
		Email:         reg.Email,
		PreferredName: reg.PreferredName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, domain.TokenPair{}, ErrUsernameTaken
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	// Best effort: the filter only short-circuits lookups, the unique index
	// above is the guarantee.
	if err := s.Usernames.Add(ctx, user.Username); err != nil {
		l.Warn("username filter add failed", "username", user.Username, "err", err)
	}

	pair, err := s.Tokens.Issue(ctx, user.ID)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	l.Info("registration completed", "user_id", user.ID, "username", user.Username)
	return user, pair, nil
}

// usernameTaken consults the probabilistic filter first and only hits the
// user store on a maybe, so the common miss path is a single filter probe.
func (s *RegistrationService) usernameTaken(ctx context.Context, username string) (bool, error) {
	available, err := s.Usernames.IsAvailable(ctx, username)
	if err != nil {
		return false, err
	}
	if available {
		return false, nil
	}

	// Could be a filter false positive; confirm against the record store.
	_, err = s.Users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

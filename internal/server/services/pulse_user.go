package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pulseops/pulseguardian/internal/common"
	"github.com/pulseops/pulseguardian/internal/dbx"
	"github.com/pulseops/pulseguardian/internal/logging"
	"github.com/pulseops/pulseguardian/internal/server/config"
	"github.com/pulseops/pulseguardian/internal/server/management"
	"github.com/pulseops/pulseguardian/internal/server/models"
	"github.com/pulseops/pulseguardian/internal/server/repositories/repomanager"
)

// User-facing message texts. The update path reports partial failures
// while the creation path drops unmatched owner emails silently once at
// least one resolves; the difference is inherited behavior, keep it.
const (
	msgPasswordMismatch = "Password verification doesn't match the password."
	msgWeakPassword     = "Your password must contain a mix of letters and numerical characters and be at least 6 characters long."
	msgBadUsername      = "The submitted username must start with an alphabetical character and contain only alphanumeric characters, periods, underscores, and hyphens."
	msgUsernameTaken    = "A user with the same username already exists."
	msgBadOwnersList    = "Invalid owners: Must be a comma-delimited list of existing user emails."
	msgBrokerDown       = "Could not contact the message broker. Please try again later."
)

// PulseUserService creates, edits and deletes pulse users, keeping the
// local store and the broker consistent under the broker-first ordering
// discipline.
type PulseUserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	broker      Broker
	logger      logging.Logger
	reserved    *regexp.Regexp
	reservedMsg string
}

// NewPulseUserService constructs a PulseUserService. The reserved-name
// pattern from the config is compiled once here; an empty pattern
// disables the check.
func NewPulseUserService(db *sql.DB, m repomanager.RepositoryManager, b Broker, cfg *config.Config, logger logging.Logger) (*PulseUserService, error) {
	s := &PulseUserService{
		db:          db,
		repomanager: m,
		broker:      b,
		logger:      logger.With("module", "pulse_user_service"),
		reservedMsg: cfg.ReservedUsersMessage,
	}
	if cfg.ReservedUsersRegex != "" {
		re, err := regexp.Compile(cfg.ReservedUsersRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid reserved users pattern: %w", err)
		}
		s.reserved = re
	}
	return s, nil
}

// RegisterRequest carries the raw form inputs of a new-credential
// request.
type RegisterRequest struct {
	Username             string
	Password             string
	PasswordConfirmation string
	Owners               string // raw comma-delimited email list
}

// Register validates a new-credential request and, on success, creates
// the broker-side user first and the local pulse user second.
func (s *PulseUserService) Register(ctx context.Context, req RegisterRequest) *Outcome {
	var errs []string

	if req.Password != req.PasswordConfirmation {
		errs = append(errs, msgPasswordMismatch)
	} else if !models.StrongPassword(req.Password) {
		errs = append(errs, msgWeakPassword)
	}

	if !models.ValidUsername(req.Username) {
		errs = append(errs, msgBadUsername)
	}

	if s.reserved != nil && s.reserved.MatchString(req.Username) {
		errs = append(errs, "The submitted username is reserved. "+s.reservedMsg)
	}

	// The username must be free in both systems. An unreachable broker
	// is its own failure; it never counts as "exists" or "absent".
	taken, err := s.usernameInBroker(ctx, req.Username)
	if err != nil {
		s.logger.Error(ctx, "broker user lookup failed", "username", req.Username, "error", err.Error())
		return failure(msgBrokerDown)
	}
	if !taken {
		taken, err = s.repomanager.PulseUsers(s.db).Exists(ctx, req.Username)
		if err != nil {
			s.logger.Error(ctx, "local pulse user lookup failed", "username", req.Username, "error", err.Error())
			return failure(msgBrokerDown)
		}
	}
	if taken {
		errs = append(errs, msgUsernameTaken)
	}

	if len(errs) > 0 {
		return &Outcome{OK: false, Errors: errs}
	}

	ownerUsers, err := s.repomanager.Users(s.db).GetByEmails(ctx, cleanOwners(req.Owners))
	if err != nil {
		s.logger.Error(ctx, "owner lookup failed", "error", err.Error())
		return failure(msgBrokerDown)
	}
	if len(ownerUsers) == 0 {
		raw := req.Owners
		if raw == "" {
			raw = "None"
		}
		return failure("Invalid owners list: " + raw)
	}

	// Broker first. A broker failure must leave the local store
	// untouched.
	if err := s.broker.CreateUser(ctx, req.Username, req.Password, management.DefaultUserTags); err != nil {
		s.logger.Error(ctx, "couldn't create user on rabbitmq", "username", req.Username, "error", err.Error())
		return failure(msgBrokerDown)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err.Error())
		return failure(msgBrokerDown)
	}

	emails := make([]string, 0, len(ownerUsers))
	for _, u := range ownerUsers {
		emails = append(emails, u.Email)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pu := &models.PulseUser{Username: req.Username, PasswordHash: string(hash)}
		return s.repomanager.PulseUsers(tx).Create(ctx, pu, emails)
	})
	if err != nil {
		// The broker user exists but the local record does not; the two
		// systems have diverged and need manual reconciliation.
		s.logger.Error(ctx, "local record creation failed after broker user was created",
			"username", req.Username, "error", err.Error())
		return failure("The account was created on the broker but could not be recorded. Contact an administrator.")
	}

	s.logger.Info(ctx, "pulse user created", "username", req.Username, "owners", strings.Join(emails, ","))
	return success(fmt.Sprintf("Pulse user %s created.", req.Username))
}

// UpdateInfoRequest carries an owner/password edit for an existing
// pulse user.
type UpdateInfoRequest struct {
	Username             string
	NewPassword          string
	PasswordConfirmation string
	Owners               string // raw comma-delimited email list
	Acting               *models.User
}

// UpdateInfo applies a password and/or owner-list edit. The gate here
// is owner-only with no admin override: this is intentionally stricter
// than the admin-or-owner rule used for deletions.
func (s *PulseUserService) UpdateInfo(ctx context.Context, req UpdateInfoRequest) *Outcome {
	pu, err := s.repomanager.PulseUsers(s.db).GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &Outcome{OK: false, Messages: []string{fmt.Sprintf("Pulse user %s not found.", req.Username)}}
		}
		s.logger.Error(ctx, "pulse user lookup failed", "username", req.Username, "error", err.Error())
		return failure(msgBrokerDown)
	}

	if req.Acting == nil || !pu.OwnedBy(req.Acting.Email) {
		email := ""
		if req.Acting != nil {
			email = req.Acting.Email
		}
		return &Outcome{OK: false, Messages: []string{fmt.Sprintf("Invalid user: %s is not an owner.", email)}}
	}

	var messages []string
	var errMsg string

	if req.NewPassword != "" {
		if req.NewPassword != req.PasswordConfirmation {
			return failure(msgPasswordMismatch)
		}
		if !models.StrongPassword(req.NewPassword) {
			return failure(msgWeakPassword)
		}

		// Broker first: if the broker-side credential update fails, the
		// local hash must not change.
		if err := s.broker.CreateUser(ctx, req.Username, req.NewPassword, management.DefaultUserTags); err != nil {
			s.logger.Error(ctx, "couldn't update password on rabbitmq", "username", req.Username, "error", err.Error())
			return failure(msgBrokerDown)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error(ctx, "password hashing failed", "error", err.Error())
			return failure(msgBrokerDown)
		}
		if err := s.repomanager.PulseUsers(s.db).UpdatePasswordHash(ctx, req.Username, string(hash)); err != nil {
			s.logger.Error(ctx, "local password hash update failed after broker update succeeded",
				"username", req.Username, "error", err.Error())
			return failure(msgBrokerDown)
		}
		messages = append(messages, fmt.Sprintf("Password updated for user %s.", req.Username))
	}

	newOwners := cleanOwners(req.Owners)
	if len(newOwners) > 0 && !sameEmails(newOwners, pu.OwnerEmails()) {
		ownerUsers, err := s.repomanager.Users(s.db).GetByEmails(ctx, newOwners)
		if err != nil {
			s.logger.Error(ctx, "owner lookup failed", "error", err.Error())
			return failure(msgBrokerDown)
		}

		if len(ownerUsers) > 0 {
			resolved := make(map[string]bool, len(ownerUsers))
			emails := make([]string, 0, len(ownerUsers))
			for _, u := range ownerUsers {
				resolved[u.Email] = true
				emails = append(emails, u.Email)
			}

			err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
				return s.repomanager.PulseUsers(tx).ReplaceOwners(ctx, req.Username, emails)
			})
			if err != nil {
				s.logger.Error(ctx, "owner replacement failed", "username", req.Username, "error", err.Error())
				return failure(msgBrokerDown)
			}

			var invalid []string
			for _, email := range newOwners {
				if !resolved[email] {
					invalid = append(invalid, email)
				}
			}
			sort.Strings(invalid)
			if len(invalid) > 0 {
				errMsg = "Some user emails not found: " + strings.Join(invalid, ", ")
			} else {
				messages = []string{"Email list updated."}
			}
		} else {
			errMsg = msgBadOwnersList
		}
	}

	if errMsg == "" && len(messages) == 0 {
		messages = []string{"No info updated."}
	}

	out := &Outcome{Messages: messages}
	if errMsg != "" {
		out.Errors = []string{errMsg}
		// Partial success: a resolvable subset may already be committed
		// and is not rolled back.
		out.OK = errMsg != msgBadOwnersList
	} else {
		out.OK = true
	}
	return out
}

// Delete removes a pulse user from the broker and then from the local
// store, gated on admin-or-owner. An absent target and a denied actor
// produce the same generic failure.
func (s *PulseUserService) Delete(ctx context.Context, acting *models.User, username string) *Outcome {
	s.logger.Info(ctx, "request to delete pulse user", "username", username)

	pu, err := s.repomanager.PulseUsers(s.db).GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "pulse user lookup failed", "username", username, "error", err.Error())
		}
		return failure()
	}
	if !acting.CanManagePulseUser(pu) {
		return failure()
	}

	if err := s.broker.DeleteUser(ctx, username); err != nil {
		s.logger.Warn(ctx, "couldn't delete user on rabbitmq", "username", username, "error", err.Error())
		return failure()
	}
	if err := s.repomanager.PulseUsers(s.db).Delete(ctx, username); err != nil {
		s.logger.Error(ctx, "local record deletion failed after broker user was deleted",
			"username", username, "error", err.Error())
		return failure()
	}

	s.logger.Info(ctx, "pulse user deleted", "username", username)
	return success()
}

// List returns all pulse users with their owners loaded.
func (s *PulseUserService) List(ctx context.Context) ([]*models.PulseUser, error) {
	return s.repomanager.PulseUsers(s.db).List(ctx)
}

// usernameInBroker checks whether the username exists on the live
// broker. A response carrying the "error" key, or an error page the
// client couldn't parse, both mean the user is not there; a transport
// failure is returned as an error and never conflated with either.
func (s *PulseUserService) usernameInBroker(ctx context.Context, username string) (bool, error) {
	u, err := s.broker.User(ctx, username)
	if err != nil {
		var mgmtErr *management.Error
		if errors.As(err, &mgmtErr) {
			return false, nil
		}
		return false, err
	}
	if u.Error != "" {
		return false, nil
	}
	return true, nil
}

// cleanOwners turns a comma-delimited string of owner emails into a
// deduplicated list of trimmed, non-empty tokens.
func cleanOwners(raw string) []string {
	seen := make(map[string]struct{})
	var owners []string
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		owners = append(owners, token)
	}
	return owners
}

func sameEmails(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

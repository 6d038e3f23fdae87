package estateAuth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/MrEthical07/estateAuth/internal/rate"
	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

// Register creates a user or agent account and returns a fresh session for it. Privileged
// roles cannot self-register; use CreateUser.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	in.normalize()
	if in.Role.Privileged() {
		err := invalidInput("role cannot be self-assigned")
		e.emitAudit(ctx, auditEventRegisterFailure, false, auditActor{}, "", err, func() map[string]string {
			return map[string]string{"role": string(in.Role)}
		})
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.AllowRegistration(ctx, clientIPFromContext(ctx)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRegisterRateLimited)
				e.emitAudit(ctx, auditEventRegisterFailure, false, auditActor{}, "", ErrRegistrationRateLimited, nil)
				return nil, ErrRegistrationRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	user, err := e.createAccount(ctx, in)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, auditActor{}, "", err, nil)
		return nil, err
	}

	s := session.New(user.ID, user.Role, e.now())
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, actorOf(s), "user:"+user.ID, nil, nil)

	return &AuthResult{User: user, Session: s}, nil
}

// CreateUser provisions an account with any role. It is meant for operators and bypasses
// registration throttling.
func (e *Engine) CreateUser(ctx context.Context, in RegisterInput) (*store.User, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	in.normalize()
	user, err := e.createAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	e.logger.Info("account provisioned", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (e *Engine) createAccount(ctx context.Context, in RegisterInput) (*store.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	user := &store.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         in.Role,
	}

	err = e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := store.NewUserRepository(tx).Create(ctx, user); err != nil {
			return err
		}
		if in.Role != session.RoleAgent {
			return nil
		}
		return store.NewAgentRepository(tx).Create(ctx, &store.Agent{
			UserID: user.ID,
			Name:   in.Name,
			Email:  in.Email,
			Phone:  in.Phone,
			Agency: in.Agency,
		})
	})
	if err != nil {
		return nil, storeError(err, ErrAccountExists)
	}
	return user, nil
}

// Login verifies credentials and returns a new session. Unknown emails and wrong passwords
// are indistinguishable to the caller and cost the same hashing work.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	email = store.NormalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, auditActor{}, "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{"email": email}
				})
				return nil, ErrLoginRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	start := e.now()
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, storeError(err, ErrInvalidCredentials)
		}
		e.hasher.VerifyDummy(plaintext)
		e.metricObserve(MetricLoginLatency, start)
		return nil, e.loginFailed(ctx, email, "", "user_not_found")
	}

	ok, err := e.hasher.Verify(plaintext, user.PasswordHash)
	e.metricObserve(MetricLoginLatency, start)
	if err != nil {
		e.logger.Error("stored password hash is malformed", zap.String("user_id", user.ID))
		return nil, e.loginFailed(ctx, email, user.ID, "malformed_hash")
	}
	if !ok {
		return nil, e.loginFailed(ctx, email, user.ID, "password_mismatch")
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, email); err != nil {
			e.logger.Warn("reset login counter failed", zap.Error(err))
		}
	}
	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, user, plaintext)
	}

	s := session.New(user.ID, user.Role, e.now())
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, actorOf(s), "", nil, nil)

	return &AuthResult{User: user, Session: s}, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, userID, reason string) error {
	if e.limiter != nil {
		if err := e.limiter.RecordLoginFailure(ctx, email, clientIPFromContext(ctx)); err != nil {
			e.logger.Warn("record login failure failed", zap.Error(err))
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, auditActor{userID: userID}, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
	return ErrInvalidCredentials
}

// upgradeHash is best-effort; a failure never fails the login.
func (e *Engine) upgradeHash(ctx context.Context, user *store.User, plaintext string) {
	needs, err := e.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.logger.Warn("password rehash update failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

// Logout expires the session cookie. Sessions live only in the cookie, so there is nothing
// to revoke server-side.
func (e *Engine) Logout(ctx context.Context, w http.ResponseWriter, s *session.Session) {
	if e == nil || e.writer == nil {
		return
	}
	e.writer.Clear(w)
	e.metricInc(MetricLogout)
	if s != nil {
		e.emitAudit(ctx, auditEventLogout, true, actorOf(s), "", nil, nil)
	}
}

// Me loads the account behind s.
func (e *Engine) Me(ctx context.Context, s *session.Session) (*store.User, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if s == nil {
		return nil, ErrUnauthorized
	}
	user, err := e.users.Get(ctx, s.UserID)
	if err != nil {
		return nil, storeError(err, ErrUnauthorized)
	}
	return user, nil
}

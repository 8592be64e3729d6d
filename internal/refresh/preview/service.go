// Package preview issues and redeems preview tokens. The changeset stays on
// the server; the token carries a signed reference to it.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	jwttoken "facecards/internal/jwt_token"
	"facecards/internal/refresh/changeset"
	previewmodels "facecards/internal/refresh/preview/models"
	"facecards/internal/storage"
	"facecards/pkg/platform/sentinel"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

const invalidTokenMessage = "invalid or expired preview token"

// TokenSigner signs and verifies preview tokens.
type TokenSigner interface {
	Issue(tokenType, subject, ref string, ttl time.Duration) (string, *jwttoken.Claims, error)
	Verify(token, expectedType string) (*jwttoken.Claims, error)
}

// Issued is a freshly minted preview token.
type Issued struct {
	Token     string
	Ref       string
	ExpiresAt time.Time
}

// Service binds changesets to preview tokens.
type Service struct {
	tx       storage.Tx
	previews storage.PreviewStore
	signer   TokenSigner
	ttl      time.Duration
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(backend storage.Backend, signer TokenSigner, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		tx:       backend.Tx,
		previews: backend.Stores.Previews,
		signer:   signer,
		ttl:      ttl,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL is the lifetime of every issued token.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue stores cs and returns a token that references it.
func (s *Service) Issue(ctx context.Context, cs changeset.Changeset) (*Issued, error) {
	cs.Normalize()
	if err := cs.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create preview")
	}
	payload, err := json.Marshal(cs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create preview")
	}

	now := requestcontext.Now(ctx)
	record := &previewmodels.Record{
		ID:        uuid.NewString(),
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		return stores.Previews.Save(ctx, record)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create preview")
	}

	token, claims, err := s.signer.Issue(jwttoken.TypePreview, requestcontext.Admin(ctx), record.ID, s.ttl)
	if err != nil {
		s.purge(ctx, record.ID)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign preview token")
	}

	expiresAt := record.ExpiresAt
	if claims != nil && claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(expiresAt) {
		expiresAt = claims.ExpiresAt.Time
	}
	return &Issued{Token: token, Ref: record.ID, ExpiresAt: expiresAt}, nil
}

// Verify checks the token and returns the preview reference it carries. Every
// failure reads the same to the caller.
func (s *Service) Verify(token string) (string, error) {
	if token == "" {
		return "", dErrors.New(dErrors.CodeInvalidToken, invalidTokenMessage)
	}
	claims, err := s.signer.Verify(token, jwttoken.TypePreview)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidToken, invalidTokenMessage)
	}
	if claims.Ref == "" {
		return "", dErrors.New(dErrors.CodeInvalidToken, invalidTokenMessage)
	}
	return claims.Ref, nil
}

// Resolve returns the changeset behind a token without consuming it.
func (s *Service) Resolve(ctx context.Context, token string) (changeset.Changeset, time.Time, error) {
	ref, err := s.Verify(token)
	if err != nil {
		return changeset.Changeset{}, time.Time{}, err
	}
	record, err := s.previews.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return changeset.Changeset{}, time.Time{}, dErrors.New(dErrors.CodeInvalidToken, invalidTokenMessage)
		}
		return changeset.Changeset{}, time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load preview")
	}
	cs, err := s.decode(ctx, record)
	if err != nil {
		s.purge(ctx, ref)
		return changeset.Changeset{}, time.Time{}, err
	}
	return cs, record.ExpiresAt, nil
}

// Consume takes the preview out of stores and returns its changeset. It must
// run inside the apply transaction so the record is only gone if apply commits.
func (s *Service) Consume(ctx context.Context, stores storage.Stores, ref string) (changeset.Changeset, error) {
	record, err := stores.Previews.Take(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return changeset.Changeset{}, dErrors.New(dErrors.CodeInvalidToken, invalidTokenMessage)
		}
		return changeset.Changeset{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load preview")
	}
	return s.decode(ctx, record)
}

// PurgeIfUnusable removes a preview that can never be applied: expired or
// schema-invalid. Callers use it after a rolled back apply.
func (s *Service) PurgeIfUnusable(ctx context.Context, ref string) {
	record, err := s.previews.Get(ctx, ref)
	if err != nil {
		return
	}
	if _, err := s.decode(ctx, record); err != nil {
		s.purge(ctx, ref)
	}
}

// PurgeExpired drops every expired preview.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	var purged int
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		n, err := stores.Previews.PurgeExpired(ctx, now)
		purged = n
		return err
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge previews")
	}
	return purged, nil
}

func (s *Service) decode(ctx context.Context, record *previewmodels.Record) (changeset.Changeset, error) {
	if record.IsExpired(requestcontext.Now(ctx)) {
		return changeset.Changeset{}, dErrors.New(dErrors.CodeInvalidToken, invalidTokenMessage)
	}
	var cs changeset.Changeset
	if err := json.Unmarshal(record.Payload, &cs); err != nil {
		s.logger.WarnContext(ctx, "stored preview is not decodable",
			"preview_id", record.ID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return changeset.Changeset{}, dErrors.Wrap(err, dErrors.CodeInvalidToken, invalidTokenMessage)
	}
	if err := cs.Validate(); err != nil {
		s.logger.WarnContext(ctx, "stored preview failed validation",
			"preview_id", record.ID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return changeset.Changeset{}, dErrors.Wrap(err, dErrors.CodeInvalidToken, invalidTokenMessage)
	}
	cs.Normalize()
	return cs, nil
}

func (s *Service) purge(ctx context.Context, ref string) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		return stores.Previews.Delete(ctx, ref)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to purge preview",
			"preview_id", ref,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

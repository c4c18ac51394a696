package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/feedlens/api/internal/domain"
	pfirestore "github.com/feedlens/api/internal/platform/firestore"
)

const credentialCollection = "accountCredentials"

// CredentialRepository persists OAuth token pairs in Firestore, keyed by
// linked account id. Tokens are stored outside the user subtree so the
// refresh path can write with only the account id in hand.
type CredentialRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[credentialDocument]
}

// NewCredentialRepository constructs a Firestore-backed credential repository.
func NewCredentialRepository(provider *pfirestore.Provider) (*CredentialRepository, error) {
	if provider == nil {
		return nil, errors.New("credential repository requires firestore provider")
	}
	return &CredentialRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[credentialDocument](provider, credentialCollection, nil, nil),
	}, nil
}

type credentialDocument struct {
	AccessToken  string    `firestore:"accessToken"`
	RefreshToken string    `firestore:"refreshToken"`
	Expiry       time.Time `firestore:"expiry"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// Save stores the token pair. A refreshed pair with an empty refresh token
// keeps the previously stored one, since upstream omits the refresh token on
// renewal.
func (r *CredentialRepository) Save(ctx context.Context, accountID string, tokens domain.TokenPair) error {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return errors.New("credential repository: account id is required")
	}

	doc := credentialDocument{
		AccessToken:  tokens.AccessToken,
		RefreshToken: strings.TrimSpace(tokens.RefreshToken),
		Expiry:       tokens.Expiry.UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if doc.RefreshToken != "" {
		_, err := r.base.Set(ctx, id, doc)
		return err
	}

	// read-modify-write to keep the prior refresh token
	docRef, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			var prior credentialDocument
			if err := snap.DataTo(&prior); err != nil {
				return err
			}
			doc.RefreshToken = prior.RefreshToken
		}
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("credentials.save", err)
	}
	return nil
}

// Get loads the stored token pair for an account.
func (r *CredentialRepository) Get(ctx context.Context, accountID string) (domain.TokenPair, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return domain.TokenPair{}, errors.New("credential repository: account id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:  doc.Data.AccessToken,
		RefreshToken: doc.Data.RefreshToken,
		Expiry:       doc.Data.Expiry,
	}, nil
}

// Delete removes the stored pair, if present.
func (r *CredentialRepository) Delete(ctx context.Context, accountID string) error {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return errors.New("credential repository: account id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("credentials.delete", err)
	}
	return nil
}

func notFoundErr() error {
	return status.Error(codes.NotFound, "document not found")
}

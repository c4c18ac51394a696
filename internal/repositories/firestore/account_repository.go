package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/feedlens/api/internal/domain"
	pfirestore "github.com/feedlens/api/internal/platform/firestore"
)

const accountCollectionPattern = "users/%s/merchantAccounts"

// AccountRepository persists linked merchant accounts in Firestore.
type AccountRepository struct {
	provider *pfirestore.Provider
}

// NewAccountRepository constructs a Firestore-backed account repository.
func NewAccountRepository(provider *pfirestore.Provider) (*AccountRepository, error) {
	if provider == nil {
		return nil, errors.New("account repository requires firestore provider")
	}
	return &AccountRepository{provider: provider}, nil
}

type accountDocument struct {
	UserID     string    `firestore:"userId"`
	MerchantID string    `firestore:"merchantId"`
	Name       string    `firestore:"name"`
	WebsiteURL string    `firestore:"websiteUrl"`
	Country    string    `firestore:"country"`
	LinkedAt   time.Time `firestore:"linkedAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (d accountDocument) toDomain(id string) domain.MerchantAccount {
	return domain.MerchantAccount{
		ID:         id,
		UserID:     d.UserID,
		MerchantID: d.MerchantID,
		Name:       d.Name,
		WebsiteURL: d.WebsiteURL,
		Country:    d.Country,
		LinkedAt:   d.LinkedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// Upsert stores the linked account, replacing any prior link for the same document id.
func (r *AccountRepository) Upsert(ctx context.Context, account domain.MerchantAccount) error {
	coll, err := r.collection(ctx, account.UserID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(account.ID)
	if id == "" {
		return errors.New("account repository: account id is required")
	}

	now := time.Now().UTC()
	doc := accountDocument{
		UserID:     strings.TrimSpace(account.UserID),
		MerchantID: strings.TrimSpace(account.MerchantID),
		Name:       strings.TrimSpace(account.Name),
		WebsiteURL: strings.TrimSpace(account.WebsiteURL),
		Country:    strings.TrimSpace(account.Country),
		LinkedAt:   account.LinkedAt,
		UpdatedAt:  now,
	}
	if doc.LinkedAt.IsZero() {
		doc.LinkedAt = now
	} else {
		doc.LinkedAt = doc.LinkedAt.UTC()
	}

	if _, err := coll.Doc(id).Set(ctx, doc); err != nil {
		return pfirestore.WrapError("accounts.upsert", err)
	}
	return nil
}

// FindByID loads a linked account by document id.
func (r *AccountRepository) FindByID(ctx context.Context, userID string, accountID string) (domain.MerchantAccount, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.MerchantAccount{}, err
	}
	id := strings.TrimSpace(accountID)
	if id == "" {
		return domain.MerchantAccount{}, errors.New("account repository: account id is required")
	}

	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.MerchantAccount{}, pfirestore.WrapError("accounts.get", err)
	}
	return decodeAccountDocument(snap)
}

// FindByMerchantID loads the user's link for an upstream merchant id, if any.
func (r *AccountRepository) FindByMerchantID(ctx context.Context, userID string, merchantID string) (domain.MerchantAccount, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.MerchantAccount{}, err
	}

	iter := coll.Where("merchantId", "==", strings.TrimSpace(merchantID)).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.MerchantAccount{}, pfirestore.WrapError("accounts.find_by_merchant", notFoundErr())
	}
	if err != nil {
		return domain.MerchantAccount{}, pfirestore.WrapError("accounts.find_by_merchant", err)
	}
	return decodeAccountDocument(snap)
}

// ListByUser returns the user's linked accounts ordered by link time descending.
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]domain.MerchantAccount, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("linkedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var accounts []domain.MerchantAccount
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("accounts.list", err)
		}
		account, err := decodeAccountDocument(snap)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *AccountRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("account repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(accountCollectionPattern, uid)), nil
}

func decodeAccountDocument(snap *firestore.DocumentSnapshot) (domain.MerchantAccount, error) {
	var doc accountDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.MerchantAccount{}, pfirestore.WrapError("accounts.decode", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

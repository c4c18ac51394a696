package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	domain "github.com/feedlens/api/internal/domain"
	"github.com/feedlens/api/internal/gmc"
	"github.com/feedlens/api/internal/jobs"
	"github.com/feedlens/api/internal/platform/config"
	"github.com/feedlens/api/internal/repositories"
	"github.com/feedlens/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete
// implementations are assembled via dependency injection in NewContainer.
type Services struct {
	Accounts services.AccountService
	Products services.ProductService
	Issues   services.IssueService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	pubsubClient *pubsub.Client
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore-backed registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	c := &Container{Config: cfg, Repositories: reg}

	publisher, err := c.buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := buildServices(cfg, reg, publisher)
	if err != nil {
		c.closePubSub()
		return nil, err
	}
	c.Services = svc

	return c, nil
}

// Close releases repository clients and the Pub/Sub connection.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.closePubSub()
	if c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func (c *Container) closePubSub() {
	if c.pubsubClient != nil {
		_ = c.pubsubClient.Close()
		c.pubsubClient = nil
	}
}

func (c *Container) buildPublisher(ctx context.Context, cfg config.Config) (services.SyncEventPublisher, error) {
	if !cfg.PubSub.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	c.pubsubClient = client

	publisher, err := jobs.NewPubSubSyncPublisher(client.Topic(cfg.PubSub.SyncTopic))
	if err != nil {
		c.closePubSub()
		return nil, fmt.Errorf("build sync publisher: %w", err)
	}
	return publisher, nil
}

func buildServices(cfg config.Config, reg repositories.Registry, publisher services.SyncEventPublisher) (Services, error) {
	var svc Services

	credentials := reg.Credentials()
	factory := newClientFactory(cfg, credentials)

	accountSvc, err := services.NewAccountService(services.AccountServiceDeps{
		Accounts:    reg.Accounts(),
		Credentials: credentials,
		Clients:     factory,
		Clock:       time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build account service: %w", err)
	}
	svc.Accounts = accountSvc

	productSvc, err := services.NewProductService(services.ProductServiceDeps{
		Credentials: credentials,
		Clients:     factory,
		Events:      publisher,
		CacheTTL:    cfg.Cache.ProductTTL,
		Clock:       time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build product service: %w", err)
	}
	svc.Products = productSvc

	issueSvc, err := services.NewIssueService(services.IssueServiceDeps{
		Credentials: credentials,
		Clients:     factory,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build issue service: %w", err)
	}
	svc.Issues = issueSvc

	return svc, nil
}

// newClientFactory binds the OAuth application and paging tunables into a
// per-account upstream client builder. Refreshed tokens are written back
// through the credential repository; accounts that are not persisted yet
// (link verification) skip persistence.
func newClientFactory(cfg config.Config, credentials repositories.CredentialRepository) services.ClientFactory {
	app := gmc.OAuthApp{
		ClientID:     cfg.GoogleOAuth.ClientID,
		ClientSecret: cfg.GoogleOAuth.ClientSecret,
	}

	return func(ctx context.Context, account domain.MerchantAccount, tokens domain.TokenPair) (services.MerchantClient, error) {
		var saver gmc.TokenSaver
		if accountID := account.ID; accountID != "" && credentials != nil {
			saver = func(ctx context.Context, pair domain.TokenPair) error {
				return credentials.Save(ctx, accountID, pair)
			}
		}

		svc, err := gmc.NewUserService(ctx, app, tokens, saver)
		if err != nil {
			return nil, err
		}
		return gmc.NewClient(svc, account.MerchantID,
			gmc.WithPageSize(int64(cfg.Merchant.PageSize)),
			gmc.WithPageDelay(cfg.Merchant.PageDelay),
		)
	}
}

// Package apiorm wires the mapping, query, filter, pagination, extension and state
// layers into one API over a database, configured from an apiorm.yml file.
package apiorm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/conduit-lang/apiorm/internal/api/extension"
	"github.com/conduit-lang/apiorm/internal/api/filter"
	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/api/pagination"
	"github.com/conduit-lang/apiorm/internal/api/state"
	"github.com/conduit-lang/apiorm/internal/cache"
	"github.com/conduit-lang/apiorm/internal/config"
	"github.com/conduit-lang/apiorm/internal/logging"
	"github.com/conduit-lang/apiorm/internal/orm/database"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
	"go.uber.org/zap"
)

type (
	Operation   = metadata.Operation
	Context     = metadata.Context
	Record      = hydrate.Record
	Paginator   = pagination.PartialPaginator
	Description = filter.Description
)

var (
	// ErrUnknownProvider is returned for an operation naming a provider that does not exist
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownProcessor is returned for an operation naming a processor that does not exist
	ErrUnknownProcessor = errors.New("unknown processor")
)

// Components are the loaded pieces an API is wired from. DB may be nil to render
// queries without running them; Cache may be nil to disable description caching.
type Components struct {
	DB          *database.DB
	Entities    *mapping.Registry
	Definitions *metadata.Definitions
	Cache       cache.Cache
	Logger      *zap.Logger
}

// API exposes the operations of every resource
type API struct {
	config    *config.Config
	logger    *zap.Logger
	db        *database.DB
	dialect   query.Dialect
	entities  *mapping.Registry
	resources *metadata.ResourceRegistry
	managers  *repository.Registry
	filters   *filter.Locator
	cache     cache.Cache

	collections *state.CollectionProvider
	items       *state.ItemProvider
	persist     *state.PersistProcessor
	remove      *state.RemoveProcessor
}

// Open loads the mapping and resource files named by cfg, connects to the database
// and the description cache, and wires the API
func Open(ctx context.Context, cfg *config.Config) (*API, error) {
	c, err := loadComponents(cfg)
	if err != nil {
		return nil, err
	}

	c.DB, err = database.Open(ctx, database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	c.Cache, err = NewCache(ctx, cfg.Cache)
	if err != nil {
		c.DB.Close()
		return nil, err
	}

	api, err := New(cfg, c)
	if err != nil {
		c.DB.Close()
		closeCache(c.Cache)
		return nil, err
	}
	return api, nil
}

// Load wires an API from the files named by cfg without connecting to anything.
// Queries can be rendered with SQL but not run.
func Load(cfg *config.Config) (*API, error) {
	c, err := loadComponents(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, c)
}

func loadComponents(cfg *config.Config) (Components, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return Components{}, err
	}
	entities, err := mapping.LoadFile(cfg.Mapping)
	if err != nil {
		return Components{}, err
	}
	defs, err := metadata.LoadFile(cfg.Resources)
	if err != nil {
		return Components{}, err
	}
	return Components{Entities: entities, Definitions: defs, Logger: logger}, nil
}

// NewCache builds the description cache backend selected by cfg; "none" yields nil
func NewCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	base := cache.Config{DefaultTTL: cfg.TTL, Prefix: cfg.Prefix}

	switch cfg.Backend {
	case "none":
		return nil, nil
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Cache:    base,
		})
	default:
		return cache.NewMemoryCacheWithConfig(base), nil
	}
}

// New wires an API from already loaded components
func New(cfg *config.Config, c Components) (*API, error) {
	if c.Entities == nil || c.Definitions == nil {
		return nil, errors.New("entities and resource definitions are required")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		querier repository.Querier
		dialect query.Dialect
	)
	if c.DB != nil {
		querier, dialect = c.DB.DB, c.DB.Dialect
	} else {
		d, err := query.DialectFor(cfg.Database.Driver)
		if err != nil {
			return nil, err
		}
		dialect = d
	}

	resources := c.Definitions.Resources
	managers := repository.NewRegistry(c.Entities, querier, dialect, logger.Named("repository"))
	for _, name := range resources.Names() {
		res, _ := resources.Resource(name)
		if res.EntityFor() != name {
			managers.MapResource(name, res.EntityFor())
		}
	}
	resources.AddDefaults(managers)
	if err := completeLinks(resources, managers); err != nil {
		return nil, err
	}

	filterConfig := filter.Config{Managers: managers, Logger: logger.Named("filter")}
	if cfg.NameConverter == "snake_case" {
		filterConfig.NameConverter = filter.CamelCaseToSnakeCase{}
	}
	locator, err := filter.NewLocatorFromDefinitions(c.Definitions.Filters, filterConfig)
	if err != nil {
		return nil, err
	}

	chain := newChain(cfg, managers, resources, locator, logger)
	links := state.NewLinksHandler(managers, resources)

	return &API{
		config:      cfg,
		logger:      logger,
		db:          c.DB,
		dialect:     dialect,
		entities:    c.Entities,
		resources:   resources,
		managers:    managers,
		filters:     locator,
		cache:       c.Cache,
		collections: state.NewCollectionProvider(managers, links, chain.CollectionExtensions(), logger.Named("provider")),
		items:       state.NewItemProvider(managers, links, chain.ItemExtensions(), logger.Named("provider")),
		persist:     state.NewPersistProcessor(managers, logger.Named("processor")),
		remove:      state.NewRemoveProcessor(managers, logger.Named("processor")),
	}, nil
}

func newChain(cfg *config.Config, managers *repository.Registry, resources *metadata.ResourceRegistry, locator *filter.Locator, logger *zap.Logger) *extension.Chain {
	chain := extension.NewChain().
		AddCollection(extension.NewFilterExtension(locator, logger.Named("extension")), extension.PriorityFilter).
		AddCollection(extension.NewFilterEagerLoadingExtension(managers, resources), extension.PriorityFilterEagerLoading).
		AddCollection(extension.NewOrderExtension(managers, cfg.Collection.Order), extension.PriorityOrder).
		AddCollection(extension.NewPaginationExtension(managers, pagination.New(paginationOptions(cfg.Collection.Pagination))), extension.PriorityPagination)

	if cfg.EagerLoading.Enabled {
		properties := metadata.NewMappingPropertyFactory(managers, resources)
		eager := extension.NewEagerLoadingExtension(managers, resources, properties, extension.EagerLoadingOptions{
			MaxJoins:     cfg.EagerLoading.MaxJoins,
			ForceEager:   cfg.EagerLoading.ForceEager,
			FetchPartial: cfg.EagerLoading.FetchPartial,
		}, logger.Named("extension"))
		chain.AddCollection(eager, extension.PriorityEagerLoading).
			AddItem(eager, extension.PriorityItemEagerLoading)
	}
	return chain
}

func paginationOptions(cfg config.PaginationConfig) pagination.Options {
	options := pagination.Options{
		Enabled:                   cfg.Enabled,
		ClientEnabled:             cfg.ClientEnabled,
		ClientItemsPerPage:        cfg.ClientItemsPerPage,
		ItemsPerPage:              cfg.ItemsPerPage,
		PageParameterName:         cfg.PageParameterName,
		EnabledParameterName:      cfg.EnabledParameterName,
		ItemsPerPageParameterName: cfg.ItemsPerPageParameterName,
		PartialParameterName:      cfg.PartialParameterName,
		Partial:                   cfg.Partial,
		ClientPartial:             cfg.ClientPartial,
		GraphQLEnabled:            cfg.GraphQLEnabled,
	}
	if cfg.MaximumItemsPerPage > 0 {
		options.MaximumItemsPerPage = metadata.Int(cfg.MaximumItemsPerPage)
	}
	return options
}

// completeLinks gives item operations their identifier link and GraphQL operations
// the links of their inverse associations, then fills in missing link identifiers.
func completeLinks(resources *metadata.ResourceRegistry, managers *repository.Registry) error {
	links := metadata.NewRelationLinkFactory(managers, resources, resources, metadata.NewIdentifierLinkFactory(managers))

	for _, name := range resources.Names() {
		res, _ := resources.Resource(name)
		for _, op := range res.Operations {
			if len(op.URIVariables) == 0 && !op.IsCollection() && op.Kind != metadata.Post {
				op.URIVariables = links.LinksFromIdentifiers(op)
			}
			for i := range op.URIVariables {
				op.URIVariables[i] = links.CompleteLink(op.URIVariables[i])
			}
		}
		for _, op := range res.GraphQLOperations {
			if len(op.Links) == 0 {
				if op.Kind == metadata.GraphQLQuery {
					op.Links = links.LinksFromIdentifiers(op)
				}
				related, err := links.LinksFromRelations(op)
				if err != nil {
					return fmt.Errorf("links of %s.%s: %w", name, op.Name, err)
				}
				op.Links = append(op.Links, related...)
			}
			for i := range op.Links {
				op.Links[i] = links.CompleteLink(op.Links[i])
			}
		}
	}
	return nil
}

// RequestContext parses a query string into a request context
func RequestContext(values url.Values) *Context {
	return &Context{Filters: filter.ParseQuery(values)}
}

// Resources returns the resource registry
func (a *API) Resources() *metadata.ResourceRegistry {
	return a.resources
}

// Entities returns the entity mapping
func (a *API) Entities() *mapping.Registry {
	return a.entities
}

// Operation finds an operation of a resource by name
func (a *API) Operation(resource, name string) (*Operation, error) {
	return a.resources.Operation(resource, name)
}

// Provide runs the provider of op: a Paginator for collections, a Record (or nil) for items
func (a *API) Provide(ctx context.Context, op *Operation, uriVariables map[string]interface{}, rc *Context) (interface{}, error) {
	switch op.Provider {
	case metadata.ProviderCollection:
		return a.Collection(ctx, op, uriVariables, rc)
	case metadata.ProviderItem:
		return a.Item(ctx, op, uriVariables, rc)
	}
	return nil, fmt.Errorf("%w %q on %s.%s", ErrUnknownProvider, op.Provider, op.Resource, op.Name)
}

// Collection provides the collection of op
func (a *API) Collection(ctx context.Context, op *Operation, uriVariables map[string]interface{}, rc *Context) (Paginator, error) {
	return a.collections.Provide(ctx, op, uriVariables, orEmpty(rc))
}

// Item provides the record of op, or nil when nothing matches
func (a *API) Item(ctx context.Context, op *Operation, uriVariables map[string]interface{}, rc *Context) (Record, error) {
	return a.items.Provide(ctx, op, uriVariables, orEmpty(rc))
}

// Process runs the processor of op on data. Removing returns nil data.
func (a *API) Process(ctx context.Context, data Record, op *Operation, uriVariables map[string]interface{}, rc *Context) (Record, error) {
	switch op.Processor {
	case metadata.ProcessorPersist:
		return a.persist.Process(ctx, data, op, uriVariables, rc)
	case metadata.ProcessorRemove:
		return nil, a.remove.Process(ctx, data, op, uriVariables, rc)
	}
	return nil, fmt.Errorf("%w %q on %s.%s", ErrUnknownProcessor, op.Processor, op.Resource, op.Name)
}

// SQL renders the query op would run, without running it. Collection queries include
// the page window; the count and distinct-identifier queries are not shown.
func (a *API) SQL(ctx context.Context, op *Operation, uriVariables map[string]interface{}, rc *Context) (string, []interface{}, error) {
	var (
		prepared *state.Prepared
		err      error
	)
	if op.IsCollection() {
		prepared, err = a.collections.Prepare(ctx, op, uriVariables, orEmpty(rc))
	} else {
		prepared, err = a.items.Prepare(ctx, op, uriVariables, orEmpty(rc))
	}
	if err != nil {
		return "", nil, err
	}
	return prepared.Query.Statement(a.dialect)
}

// WithCache returns a copy of the API storing filter descriptions in c
func (a *API) WithCache(c cache.Cache) *API {
	dup := *a
	dup.cache = c
	return &dup
}

// FilterDescriptions describes the filters of op, through the description cache
func (a *API) FilterDescriptions(ctx context.Context, op *Operation) (map[string]Description, error) {
	return filter.Descriptions(ctx, a.filters, a.cache, a.config.Cache.TTL, op.Resource, op.Filters)
}

// WarmCache stores the description of every filter on every resource
func (a *API) WarmCache(ctx context.Context) (int, error) {
	if a.cache == nil {
		return 0, nil
	}
	n, err := filter.Warm(ctx, a.filters, a.cache, a.config.Cache.TTL, a.resources.Names())
	if err != nil {
		return n, err
	}
	a.logger.Info("filter descriptions cached", zap.Int("count", n))
	return n, nil
}

// ClearCache drops every cached filter description
func (a *API) ClearCache(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	if err := a.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear the description cache: %w", err)
	}
	a.logger.Info("filter descriptions cleared")
	return nil
}

// Close releases the database pool and the cache
func (a *API) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	errs = append(errs, closeCache(a.cache))
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func closeCache(c cache.Cache) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func orEmpty(rc *Context) *Context {
	if rc == nil {
		return &Context{}
	}
	return rc
}

package davincikit

import (
	"net/http"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/collector"
	"github.com/pingidentity/davincikit/davinci"
	"github.com/pingidentity/davincikit/device"
	"github.com/pingidentity/davincikit/oidc"
	"github.com/pingidentity/davincikit/push"
	"github.com/pingidentity/davincikit/workflow"
)

// Client wires the workflow engine, OIDC core, push engine and
// device-client behind a single functional-options constructor.
type Client struct {
	http     capability.HTTP
	logger   capability.Logger
	clock    capability.Clock
	crypto   capability.Crypto
	registry *collector.Registry

	workflow *workflow.Engine
	oidc     *oidc.Client
	push     *push.Engine
	device   *device.Client
}

// Option configures a Client at construction time.
type Option func(*options)

type options struct {
	httpClient *http.Client
	platform   capability.Platform
	logger     capability.Logger
	clock      capability.Clock
	crypto     capability.Crypto
	registry   *collector.Registry
	modules    []workflow.Module

	oidcConfig *oidc.Config
	pushConfig push.EngineConfig
	deviceConfig *device.Config

	tokens      capability.Storage[oidc.Token]
	cookies     capability.Storage[[]*http.Cookie]
	pushCreds   capability.Storage[[]*push.PushCredential]
	pushNotifs  capability.Storage[[]*push.PushNotification]
	deviceToken capability.Storage[string]
}

// WithHTTPClient sets the underlying *http.Client the default HTTP
// capability wraps.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithPlatform supplies the host app/OS descriptor used to populate
// the x-requested-platform header.
func WithPlatform(p capability.Platform) Option {
	return func(o *options) { o.platform = p }
}

// WithLogger overrides the default no-op zap logger.
func WithLogger(l capability.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the default system clock (tests use this to make
// expiry/TTL logic deterministic).
func WithClock(c capability.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCrypto overrides the default stdlib-backed Crypto capability.
func WithCrypto(c capability.Crypto) Option {
	return func(o *options) { o.crypto = c }
}

// WithCollectorRegistry supplies a pre-built Registry, e.g. one shared
// across multiple Clients or extended via Registry.Register before
// construction.
func WithCollectorRegistry(r *collector.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithModules adds workflow modules beyond the built-in cookie module
// and (if configured) the OIDC authorize module.
func WithModules(modules ...workflow.Module) Option {
	return func(o *options) { o.modules = append(o.modules, modules...) }
}

// WithOIDC enables the OIDC core with cfg, registering its authorize
// module on the workflow and exposing Client.OIDC().
func WithOIDC(cfg oidc.Config) Option {
	return func(o *options) { o.oidcConfig = &cfg }
}

// WithPushEngine configures the push credential/notification engine
// (cache, cleanup policy).
func WithPushEngine(cfg push.EngineConfig) Option {
	return func(o *options) { o.pushConfig = cfg }
}

// WithDevice enables the device-client with cfg, exposing
// Client.Device().
func WithDevice(cfg device.Config) Option {
	return func(o *options) { o.deviceConfig = &cfg }
}

// WithTokenStorage overrides the default in-memory OIDC token store.
func WithTokenStorage(s capability.Storage[oidc.Token]) Option {
	return func(o *options) { o.tokens = s }
}

// WithCookieStorage overrides the default in-memory cookie store.
func WithCookieStorage(s capability.Storage[[]*http.Cookie]) Option {
	return func(o *options) { o.cookies = s }
}

// WithPushCredentialStorage overrides the default in-memory push
// credential store.
func WithPushCredentialStorage(s capability.Storage[[]*push.PushCredential]) Option {
	return func(o *options) { o.pushCreds = s }
}

// WithPushNotificationStorage overrides the default in-memory push
// notification store.
func WithPushNotificationStorage(s capability.Storage[[]*push.PushNotification]) Option {
	return func(o *options) { o.pushNotifs = s }
}

// WithDeviceTokenStorage overrides the default in-memory device-token
// store consulted by the push engine's SetDeviceToken.
func WithDeviceTokenStorage(s capability.Storage[string]) Option {
	return func(o *options) { o.deviceToken = s }
}

// NewClient builds a Client against baseURL, applying opts over a set
// of in-memory/no-op defaults.
func NewClient(baseURL string, opts ...Option) *Client {
	o := &options{
		logger:      capability.NewZapLogger(nil),
		clock:       capability.NewSystemClock(),
		crypto:      capability.NewStdCrypto(),
		registry:    collector.NewRegistry(),
		tokens:      capability.NewMemoryStorage[oidc.Token](),
		cookies:     capability.NewMemoryStorage[[]*http.Cookie](),
		pushCreds:   capability.NewMemoryStorage[[]*push.PushCredential](),
		pushNotifs:  capability.NewMemoryStorage[[]*push.PushNotification](),
		deviceToken: capability.NewMemoryStorage[string](),
	}
	for _, opt := range opts {
		opt(o)
	}

	httpCap := capability.NewHTTPCapability(o.httpClient, o.platform)

	driver := davinci.New(davinci.Config{BaseURL: baseURL, Registry: o.registry})

	modules := append([]workflow.Module{davinci.NewCookieModule(o.cookies)}, o.modules...)

	var oidcClient *oidc.Client
	if o.oidcConfig != nil {
		modules = append(modules, oidc.NewAuthorizeModule(*o.oidcConfig, httpCap, o.tokens, o.clock))
		oidcClient = oidc.NewClient(*o.oidcConfig, httpCap, o.tokens, o.clock, o.cookies)
	}

	wf := workflow.New(driver, workflow.Config{HTTP: httpCap, Logger: o.logger, Modules: modules})

	pushEngine := push.NewEngine(httpCap, o.clock, o.logger, o.pushCreds, o.pushNotifs, o.deviceToken, o.pushConfig)

	var deviceClient *device.Client
	if o.deviceConfig != nil {
		cfg := *o.deviceConfig
		if cfg.BaseURL == "" {
			cfg.BaseURL = baseURL
		}
		deviceClient = device.New(cfg, httpCap)
	}

	return &Client{
		http:     httpCap,
		logger:   o.logger,
		clock:    o.clock,
		crypto:   o.crypto,
		registry: o.registry,
		workflow: wf,
		oidc:     oidcClient,
		push:     pushEngine,
		device:   deviceClient,
	}
}

// Close stops the workflow and push actors. In-flight operations
// complete; subsequent calls on either engine fail.
func (c *Client) Close() {
	c.workflow.Close()
	c.push.Close()
}

// Workflow returns the orchestration engine driving DaVinci/Journey
// flows.
func (c *Client) Workflow() *workflow.Engine { return c.workflow }

// OIDC returns the OIDC user facade, or nil if WithOIDC was not
// supplied.
func (c *Client) OIDC() *oidc.Client { return c.oidc }

// Push returns the push credential/notification engine.
func (c *Client) Push() *push.Engine { return c.push }

// Device returns the device-client, or nil if WithDevice was not
// supplied.
func (c *Client) Device() *device.Client { return c.device }

// CollectorRegistry returns the registry backing this Client's flow
// driver, so embedding applications can register additional collector
// factories.
func (c *Client) CollectorRegistry() *collector.Registry { return c.registry }

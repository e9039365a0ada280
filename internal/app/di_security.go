package app

import (
	"context"
	"fmt"
	"sync"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	accessRepository "github.com/aknoru/lacbot-security/internal/access/repository"
	accessUseCase "github.com/aknoru/lacbot-security/internal/access/usecase"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	auditRepository "github.com/aknoru/lacbot-security/internal/audit/repository"
	auditService "github.com/aknoru/lacbot-security/internal/audit/service"
	auditUseCase "github.com/aknoru/lacbot-security/internal/audit/usecase"
	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	cryptoService "github.com/aknoru/lacbot-security/internal/crypto/service"
	cryptoUseCase "github.com/aknoru/lacbot-security/internal/crypto/usecase"
	gatewayUseCase "github.com/aknoru/lacbot-security/internal/gateway/usecase"
	keystoreRepository "github.com/aknoru/lacbot-security/internal/keystore/repository"
	keystoreUseCase "github.com/aknoru/lacbot-security/internal/keystore/usecase"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
	ratelimitRepository "github.com/aknoru/lacbot-security/internal/ratelimit/repository"
	ratelimitUseCase "github.com/aknoru/lacbot-security/internal/ratelimit/usecase"
	sanitizerService "github.com/aknoru/lacbot-security/internal/sanitizer/service"
	threatDomain "github.com/aknoru/lacbot-security/internal/threat/domain"
	threatUseCase "github.com/aknoru/lacbot-security/internal/threat/usecase"
)

// auditBufferSize bounds the retry buffer for failed audit appends.
const auditBufferSize = 256

// lazyRecorder breaks the construction cycle between the key store and the
// event pipeline: the key store records lifecycle events through the
// pipeline, but the pipeline's audit trail signs with keys served by the key
// store. The key store receives this recorder at build time and the pipeline
// is bound once it exists. Record is a no-op until then, which only affects
// key operations performed during wiring.
type lazyRecorder struct {
	mu    sync.RWMutex
	inner keystoreUseCase.Recorder
}

func (r *lazyRecorder) bind(inner keystoreUseCase.Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inner = inner
}

func (r *lazyRecorder) Record(ctx context.Context, draft *auditDomain.EventDraft) {
	r.mu.RLock()
	inner := r.inner
	r.mu.RUnlock()
	if inner != nil {
		inner.Record(ctx, draft)
	}
}

// securityComponents groups the security-domain dependencies managed by the
// container.
type securityComponents struct {
	masterKeyChain *cryptoDomain.MasterKeyChain
	wrapper        cryptoService.Wrapper
	aeadManager    *cryptoService.AEADManagerService
	signer         *cryptoService.Ed25519Signer
	keyRecorder    lazyRecorder

	keyRepository       keystoreUseCase.KeyRepository
	eventRepository     auditUseCase.EventRepository
	blockRepository     ratelimitUseCase.BlockRepository
	principalRepository accessUseCase.PrincipalRepository

	keyStore      keystoreUseCase.KeyStoreUseCase
	eventUseCase  auditUseCase.SecurityEventUseCase
	eventPipeline *gatewayUseCase.EventPipeline
	rateLimiter   ratelimitUseCase.RateLimiterUseCase
	accessControl accessUseCase.AccessControlUseCase
	threatMonitor threatUseCase.ThreatMonitorUseCase
	sanitizer     sanitizerService.Sanitizer
	cryptoEngine  cryptoUseCase.CryptoEngineUseCase
	gateway       gatewayUseCase.SecurityGatewayUseCase

	wrapperInit       sync.Once
	keyRepoInit       sync.Once
	eventRepoInit     sync.Once
	blockRepoInit     sync.Once
	principalRepoInit sync.Once
	keyStoreInit      sync.Once
	eventUseCaseInit  sync.Once
	pipelineInit      sync.Once
	rateLimiterInit   sync.Once
	accessInit        sync.Once
	threatInit        sync.Once
	sanitizerInit     sync.Once
	cryptoEngineInit  sync.Once
	gatewayInit       sync.Once
}

// Wrapper returns the key wrapping service. A cloud KMS keeper is used when
// a key URI is configured, otherwise master keys are loaded from the
// environment.
func (c *Container) Wrapper() (cryptoService.Wrapper, error) {
	var err error
	c.security.wrapperInit.Do(func() {
		c.security.wrapper, err = c.initWrapper()
		if err != nil {
			c.initErrors["wrapper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["wrapper"]; exists {
		return nil, storedErr
	}
	return c.security.wrapper, nil
}

// KeyRepository returns the key material repository for the configured driver.
func (c *Container) KeyRepository() (keystoreUseCase.KeyRepository, error) {
	var err error
	c.security.keyRepoInit.Do(func() {
		c.security.keyRepository, err = c.initKeyRepository()
		if err != nil {
			c.initErrors["keyRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRepository"]; exists {
		return nil, storedErr
	}
	return c.security.keyRepository, nil
}

// KeyStoreUseCase returns the key lifecycle use case.
func (c *Container) KeyStoreUseCase() (keystoreUseCase.KeyStoreUseCase, error) {
	var err error
	c.security.keyStoreInit.Do(func() {
		c.security.keyStore, err = c.initKeyStoreUseCase()
		if err != nil {
			c.initErrors["keyStoreUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyStoreUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.keyStore, nil
}

// EventRepository returns the security event repository for the configured driver.
func (c *Container) EventRepository() (auditUseCase.EventRepository, error) {
	var err error
	c.security.eventRepoInit.Do(func() {
		c.security.eventRepository, err = c.initEventRepository()
		if err != nil {
			c.initErrors["eventRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["eventRepository"]; exists {
		return nil, storedErr
	}
	return c.security.eventRepository, nil
}

// SecurityEventUseCase returns the tamper-evident audit trail use case.
func (c *Container) SecurityEventUseCase() (auditUseCase.SecurityEventUseCase, error) {
	var err error
	c.security.eventUseCaseInit.Do(func() {
		c.security.eventUseCase, err = c.initSecurityEventUseCase()
		if err != nil {
			c.initErrors["securityEventUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["securityEventUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.eventUseCase, nil
}

// EventPipeline returns the best-effort recording fan-out used by every
// component that audits without failing its caller.
func (c *Container) EventPipeline() (*gatewayUseCase.EventPipeline, error) {
	var err error
	c.security.pipelineInit.Do(func() {
		c.security.eventPipeline, err = c.initEventPipeline()
		if err != nil {
			c.initErrors["eventPipeline"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["eventPipeline"]; exists {
		return nil, storedErr
	}
	return c.security.eventPipeline, nil
}

// BlockRepository returns the rate limit block repository for the configured driver.
func (c *Container) BlockRepository() (ratelimitUseCase.BlockRepository, error) {
	var err error
	c.security.blockRepoInit.Do(func() {
		c.security.blockRepository, err = c.initBlockRepository()
		if err != nil {
			c.initErrors["blockRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["blockRepository"]; exists {
		return nil, storedErr
	}
	return c.security.blockRepository, nil
}

// RateLimiterUseCase returns the throttling use case.
func (c *Container) RateLimiterUseCase() (ratelimitUseCase.RateLimiterUseCase, error) {
	var err error
	c.security.rateLimiterInit.Do(func() {
		c.security.rateLimiter, err = c.initRateLimiterUseCase()
		if err != nil {
			c.initErrors["rateLimiterUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rateLimiterUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.rateLimiter, nil
}

// PrincipalRepository returns the principal repository for the configured driver.
func (c *Container) PrincipalRepository() (accessUseCase.PrincipalRepository, error) {
	var err error
	c.security.principalRepoInit.Do(func() {
		c.security.principalRepository, err = c.initPrincipalRepository()
		if err != nil {
			c.initErrors["principalRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["principalRepository"]; exists {
		return nil, storedErr
	}
	return c.security.principalRepository, nil
}

// AccessControlUseCase returns the role-based authorization use case.
func (c *Container) AccessControlUseCase() (accessUseCase.AccessControlUseCase, error) {
	var err error
	c.security.accessInit.Do(func() {
		c.security.accessControl, err = c.initAccessControlUseCase()
		if err != nil {
			c.initErrors["accessControlUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accessControlUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.accessControl, nil
}

// ThreatMonitorUseCase returns the rolling risk scoring use case. Building it
// also subscribes it to the event pipeline.
func (c *Container) ThreatMonitorUseCase() (threatUseCase.ThreatMonitorUseCase, error) {
	var err error
	c.security.threatInit.Do(func() {
		c.security.threatMonitor, err = c.initThreatMonitorUseCase()
		if err != nil {
			c.initErrors["threatMonitorUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["threatMonitorUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.threatMonitor, nil
}

// Sanitizer returns the input sanitization service.
func (c *Container) Sanitizer() (sanitizerService.Sanitizer, error) {
	c.security.sanitizerInit.Do(func() {
		c.security.sanitizer = sanitizerService.NewSanitizer(c.config.SanitizerJailRoot)
	})
	return c.security.sanitizer, nil
}

// CryptoEngineUseCase returns the payload encryption use case.
func (c *Container) CryptoEngineUseCase() (cryptoUseCase.CryptoEngineUseCase, error) {
	var err error
	c.security.cryptoEngineInit.Do(func() {
		c.security.cryptoEngine, err = c.initCryptoEngineUseCase()
		if err != nil {
			c.initErrors["cryptoEngineUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoEngineUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.cryptoEngine, nil
}

// SecurityGatewayUseCase returns the composed security gateway.
func (c *Container) SecurityGatewayUseCase() (gatewayUseCase.SecurityGatewayUseCase, error) {
	var err error
	c.security.gatewayInit.Do(func() {
		c.security.gateway, err = c.initSecurityGatewayUseCase()
		if err != nil {
			c.initErrors["securityGatewayUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["securityGatewayUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.gateway, nil
}

func (c *Container) initWrapper() (cryptoService.Wrapper, error) {
	if c.config.KMSKeyURI != "" {
		keeper, err := cryptoService.NewKMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
		if err != nil {
			return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		return cryptoService.NewKMSWrapper(keeper), nil
	}

	chain, err := cryptoDomain.LoadMasterKeyChainFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load master keys: %w", err)
	}
	c.security.masterKeyChain = chain
	return cryptoService.NewMasterKeyWrapper(chain, c.aeadManager()), nil
}

func (c *Container) aeadManager() *cryptoService.AEADManagerService {
	if c.security.aeadManager == nil {
		c.security.aeadManager = cryptoService.NewAEADManager()
	}
	return c.security.aeadManager
}

func (c *Container) ed25519Signer() *cryptoService.Ed25519Signer {
	if c.security.signer == nil {
		c.security.signer = cryptoService.NewEd25519Signer()
	}
	return c.security.signer
}

func (c *Container) initKeyRepository() (keystoreUseCase.KeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return keystoreRepository.NewPostgreSQLKeyRepository(db), nil
	case "mysql":
		return keystoreRepository.NewMySQLKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKeyStoreUseCase() (keystoreUseCase.KeyStoreUseCase, error) {
	repo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for key store: %w", err)
	}

	wrapper, err := c.Wrapper()
	if err != nil {
		return nil, fmt.Errorf("failed to get wrapper for key store: %w", err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key store: %w", err)
	}

	return keystoreUseCase.NewKeyStoreUseCase(
		repo,
		wrapper,
		c.ed25519Signer(),
		txManager,
		&c.security.keyRecorder,
		c.config.KeyRotationGracePeriod,
	), nil
}

func (c *Container) initEventRepository() (auditUseCase.EventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for event repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return auditRepository.NewPostgreSQLEventRepository(db), nil
	case "mysql":
		return auditRepository.NewMySQLEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initSecurityEventUseCase() (auditUseCase.SecurityEventUseCase, error) {
	repo, err := c.EventRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get event repository for audit trail: %w", err)
	}

	keyStore, err := c.KeyStoreUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key store for audit trail: %w", err)
	}

	return auditUseCase.NewSecurityEventUseCase(
		repo,
		auditService.NewChainHasher(),
		auditService.NewEventSigner(),
		keyStore,
		auditUseCase.RetryPolicy{
			AppendTimeout: c.config.AuditAppendTimeout,
			RetryInterval: c.config.AuditRetryInterval,
			RetryBudget:   c.config.AuditRetryBudget,
			BufferSize:    auditBufferSize,
		},
	), nil
}

func (c *Container) initEventPipeline() (*gatewayUseCase.EventPipeline, error) {
	eventUseCase, err := c.SecurityEventUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail for event pipeline: %w", err)
	}

	securityMetrics, err := c.SecurityMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get security metrics for event pipeline: %w", err)
	}

	pipeline := gatewayUseCase.NewEventPipeline(eventUseCase, c.Logger()).WithMetrics(securityMetrics)

	// Close the key store / audit trail loop: key lifecycle events now
	// flow into the pipeline like everything else.
	c.security.keyRecorder.bind(pipeline)

	return pipeline, nil
}

func (c *Container) initBlockRepository() (ratelimitUseCase.BlockRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for block repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return ratelimitRepository.NewPostgreSQLBlockRepository(db), nil
	case "mysql":
		return ratelimitRepository.NewMySQLBlockRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRateLimiterUseCase() (ratelimitUseCase.RateLimiterUseCase, error) {
	repo, err := c.BlockRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get block repository for rate limiter: %w", err)
	}

	pipeline, err := c.EventPipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to get event pipeline for rate limiter: %w", err)
	}

	limits := ratelimitUseCase.Limits{
		ratelimitDomain.TierIP: {
			Capacity:        c.config.RateLimitIPPerMinute,
			RefillPerSecond: float64(c.config.RateLimitIPPerMinute) / 60,
		},
		ratelimitDomain.TierPrincipal: {
			Capacity:        c.config.RateLimitUserPerMinute,
			RefillPerSecond: float64(c.config.RateLimitUserPerMinute) / 60,
		},
		ratelimitDomain.TierOperation: {
			Capacity:        c.config.RateLimitOperationPerMinute,
			RefillPerSecond: float64(c.config.RateLimitOperationPerMinute) / 60,
		},
	}
	escalation := ratelimitUseCase.Escalation{
		FirstBlock:          c.config.RateLimitFirstBlock,
		RepeatBlock:         c.config.RateLimitRepeatBlock,
		BlockFreeWindow:     c.config.RateLimitBlockFreeWindow,
		IndefiniteThreshold: c.config.RateLimitIndefiniteThreshold,
	}

	return ratelimitUseCase.NewRateLimiterUseCase(limits, escalation, repo, pipeline, c.Logger()), nil
}

func (c *Container) initPrincipalRepository() (accessUseCase.PrincipalRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for principal repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return accessRepository.NewPostgreSQLPrincipalRepository(db), nil
	case "mysql":
		return accessRepository.NewMySQLPrincipalRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAccessControlUseCase() (accessUseCase.AccessControlUseCase, error) {
	repo, err := c.PrincipalRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get principal repository for access control: %w", err)
	}

	pipeline, err := c.EventPipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to get event pipeline for access control: %w", err)
	}

	accessControl, err := accessUseCase.NewAccessControlUseCase(accessDomain.DefaultPolicy(), repo, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to create access control: %w", err)
	}
	return accessControl, nil
}

func (c *Container) initThreatMonitorUseCase() (threatUseCase.ThreatMonitorUseCase, error) {
	rateLimiter, err := c.RateLimiterUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limiter for threat monitor: %w", err)
	}

	accessControl, err := c.AccessControlUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get access control for threat monitor: %w", err)
	}

	pipeline, err := c.EventPipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to get event pipeline for threat monitor: %w", err)
	}

	escalator := gatewayUseCase.NewThreatEscalator(rateLimiter, accessControl, pipeline, c.Logger())
	escalator.CriticalDuration = c.config.ThreatOverrideBlock

	monitorConfig := threatUseCase.DefaultConfig()
	monitorConfig.HalfLife = c.config.ThreatDecayHalfLife
	monitorConfig.Thresholds = threatDomain.Thresholds{
		Medium:   threatDomain.DefaultThresholds().Medium,
		High:     c.config.ThreatHighThreshold,
		Critical: c.config.ThreatCriticalThreshold,
	}

	monitor := threatUseCase.NewThreatMonitorUseCase(monitorConfig, escalator)
	pipeline.Bind(monitor)

	return monitor, nil
}

func (c *Container) initCryptoEngineUseCase() (cryptoUseCase.CryptoEngineUseCase, error) {
	keyStore, err := c.KeyStoreUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key store for crypto engine: %w", err)
	}

	engine, err := cryptoUseCase.NewCryptoEngineUseCase(
		keyStore.Chain(),
		c.aeadManager(),
		c.ed25519Signer(),
		cryptoDomain.AESGCM,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crypto engine: %w", err)
	}
	return engine, nil
}

func (c *Container) initSecurityGatewayUseCase() (gatewayUseCase.SecurityGatewayUseCase, error) {
	sanitizer, err := c.Sanitizer()
	if err != nil {
		return nil, fmt.Errorf("failed to get sanitizer for security gateway: %w", err)
	}

	rateLimiter, err := c.RateLimiterUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limiter for security gateway: %w", err)
	}

	accessControl, err := c.AccessControlUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get access control for security gateway: %w", err)
	}

	cryptoEngine, err := c.CryptoEngineUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto engine for security gateway: %w", err)
	}

	pipeline, err := c.EventPipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to get event pipeline for security gateway: %w", err)
	}

	threatMonitor, err := c.ThreatMonitorUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get threat monitor for security gateway: %w", err)
	}

	securityMetrics, err := c.SecurityMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get security metrics for security gateway: %w", err)
	}

	return gatewayUseCase.NewSecurityGatewayUseCase(
		sanitizer,
		rateLimiter,
		accessControl,
		cryptoEngine,
		pipeline,
		threatMonitor,
		securityMetrics,
	), nil
}

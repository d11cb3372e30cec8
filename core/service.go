package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the governance and admission core: the config approval
// workflow, entitlement resolution, and booking admission all run through
// it. Construct with NewService; all collaborators are injectable options.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	clock             Clock
	schemaRegistry    SchemaRegistry
	eventSink         EventSink
	slotLocker        SlotLocker
	codeGenerator     CodeGenerator
	persistenceClient any
	configStore       ConfigStore
	entitlementStore  EntitlementStore
	resourceStore     ResourceStore
	bookingStore      BookingStore
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	Clock            Clock
	SchemaRegistry   SchemaRegistry
	EventSink        EventSink
	SlotLocker       SlotLocker
	CodeGenerator    CodeGenerator
	ConfigStore      ConfigStore
	EntitlementStore EntitlementStore
	ResourceStore    ResourceStore
	BookingStore     BookingStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("tenancy", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("tenancy"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = tenancyErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = SystemClock{}
	}
	if builder.schemaRegistry == nil {
		builder.schemaRegistry = NewModuleSchemaRegistry()
	}
	if builder.eventSink == nil {
		builder.eventSink = NopEventSink{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.slotLocker == nil {
		builder.slotLocker = NewMemorySlotLocker()
	}
	if builder.codeGenerator == nil {
		builder.codeGenerator = RandomCodeGenerator{Length: finalConfig.Booking.CodeLength}
	}

	if builder.storeProvider != nil {
		if builder.configStore == nil {
			builder.configStore = builder.storeProvider.ConfigStore()
		}
		if builder.entitlementStore == nil {
			builder.entitlementStore = builder.storeProvider.EntitlementStore()
		}
		if builder.resourceStore == nil {
			builder.resourceStore = builder.storeProvider.ResourceStore()
		}
		if builder.bookingStore == nil {
			builder.bookingStore = builder.storeProvider.BookingStore()
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		clock:             builder.clock,
		schemaRegistry:    builder.schemaRegistry,
		eventSink:         builder.eventSink,
		slotLocker:        builder.slotLocker,
		codeGenerator:     builder.codeGenerator,
		persistenceClient: builder.persistenceClient,
		configStore:       builder.configStore,
		entitlementStore:  builder.entitlementStore,
		resourceStore:     builder.resourceStore,
		bookingStore:      builder.bookingStore,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		Clock:            s.clock,
		SchemaRegistry:   s.schemaRegistry,
		EventSink:        s.eventSink,
		SlotLocker:       s.slotLocker,
		CodeGenerator:    s.codeGenerator,
		ConfigStore:      s.configStore,
		EntitlementStore: s.entitlementStore,
		ResourceStore:    s.resourceStore,
		BookingStore:     s.bookingStore,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return SystemClock{}.Now()
	}
	return s.clock.Now()
}

// emit delivers a lifecycle event to the sink after the owning store call
// returned. Emission never fails the operation.
func (s *Service) emit(ctx context.Context, event LifecycleEvent) {
	if s == nil || s.eventSink == nil {
		return
	}
	s.eventSink.Emit(ctx, event)
}

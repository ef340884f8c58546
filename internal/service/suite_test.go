package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/listing"
	"github.com/sakashimaa/product-showcase/internal/metrics"
	"github.com/sakashimaa/product-showcase/internal/repository"
	"github.com/sakashimaa/product-showcase/internal/service"
	productKafka "github.com/sakashimaa/product-showcase/internal/transport/kafka"
	"github.com/sakashimaa/product-showcase/pkg/db"
	kafka2 "github.com/sakashimaa/product-showcase/pkg/kafka"
	outboxRepository "github.com/sakashimaa/product-showcase/pkg/outbox/repository"
	"github.com/sakashimaa/product-showcase/pkg/outbox/worker"
	"github.com/sakashimaa/product-showcase/pkg/testsuite"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const topic = "product_events"

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	ProductService       service.ProductService
	CachedProductService service.CachedProductService
	Listing              *listing.Service
	Broker               *listing.Broker
	Metrics              *metrics.Metrics
	TestProducer         kafka2.Producer
	OutboxProcessor      *worker.OutboxProcessor
	workerCancel         context.CancelFunc
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure(testsuite.Options{
		MigrationsDir: "../../migrations",
		WithKafka:     true,
		WithRedis:     true,
	})
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.BaseSuite.TruncateTables("products", "outbox")

	logger := zap.NewNop()
	productRepo := repository.NewProductRepository(logger)
	outboxRepo := outboxRepository.NewOutboxRepository(logger)
	txRunner := db.NewTxRunner(s.DbPool, logger, 5*time.Second)

	s.Metrics = metrics.New(prometheus.NewRegistry())

	var err error
	s.TestProducer, err = kafka2.NewProducer(s.KafkaBrokers, logger)
	s.Require().NoError(err, "failed to create kafka producer")

	s.ProductService = service.NewProductService(productRepo, outboxRepo, s.DbPool, txRunner, topic, s.Metrics, logger)
	s.CachedProductService = service.NewCachedProductService(s.ProductService, s.Redis, time.Minute, s.Metrics, logger)

	s.Broker = listing.NewBroker()
	s.Listing = listing.NewService(productRepo, s.DbPool, s.Broker, listing.Options{}, s.Metrics, logger)

	s.OutboxProcessor = worker.NewOutboxProcessor(s.DbPool, outboxRepo, s.TestProducer, logger)

	workerCtx, cancel := context.WithCancel(s.Ctx)
	s.workerCancel = cancel

	go s.OutboxProcessor.Start(workerCtx)

	consumer := productKafka.NewConsumer(s.CachedProductService, s.Broker, logger)
	go func() {
		_ = consumer.Start(workerCtx, s.KafkaBrokers, "showcase-test-"+uuid.NewString(), topic)
	}()
}

func (s *IntegrationTestSuite) TearDownTest() {
	if s.workerCancel != nil {
		s.workerCancel()
	}
	if s.TestProducer != nil {
		_ = s.TestProducer.Close()
	}
}

func (s *IntegrationTestSuite) createProduct(creator *domain.Caller, name string) *domain.Product {
	product, err := s.ProductService.Create(s.Ctx, creator, domain.ProductDraft{
		Name:        name,
		Company:     "Acme",
		URL:         "https://acme.example/" + name,
		Description: "Best album vinyl",
	})
	s.Require().NoError(err)
	s.Require().NotNil(product)

	return product
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration tests need docker")
	}

	suite.Run(t, new(IntegrationTestSuite))
}

//go:build integration

package main_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/contracts"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/policy"
	bookingEvents "github.com/thairide/service-booking/internal/events"
	"github.com/thairide/service-booking/internal/platform/kafka"
	"github.com/thairide/service-booking/internal/repository"
	"github.com/thairide/service-booking/internal/scheduler"
)

const (
	pgUser     = "booking"
	pgPassword = "booking"
	pgDatabase = "booking_it"
)

// testInfra is the Postgres database and Kafka cluster one test runs against.
// Containers are terminated through t.Cleanup.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Drivers         *application.DriverService
	Consumer        *bookingEvents.PaymentEventConsumer
	CleanupProducer func()
}

func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	return &testInfra{
		DB:           startPostgres(ctx, t),
		KafkaBrokers: startKafka(ctx, t),
	}
}

// startPostgres runs a throwaway Postgres and migrates the booking schema into it.
func startPostgres(ctx context.Context, t *testing.T) *gorm.DB {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			// The entrypoint restarts the server once after init.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		host, port.Port(), pgUser, pgPassword, pgDatabase)

	var db *gorm.DB
	require.Eventually(t, func() bool {
		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := conn.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			return false
		}
		db = conn
		return true
	}, 30*time.Second, 500*time.Millisecond, "postgres never accepted connections")

	require.NoError(t, db.AutoMigrate(repository.AllModels()...))
	return db
}

// startKafka runs a single-node KRaft broker with the booking and payment topics.
func startKafka(ctx context.Context, t *testing.T) []string {
	t.Helper()
	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("booking-it"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	createTopics(ctx, t, brokers, contracts.TopicBookingEvents, contracts.TopicPaymentEvents)
	return brokers
}

// setupBookingStack wires up the full booking service stack on Postgres and Kafka.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger := zap.NewNop()
	ctx := context.Background()

	policyRepo := repository.NewGormPolicyRepository(db)
	policyService := application.NewPolicyService(policyRepo, logger)
	require.NoError(t, policyService.EnsureSeed(ctx, policy.Defaults()))

	uow := repository.NewGormUnitOfWork(db)
	reader := repository.NewRepositories(db)
	producer := kafka.NewProducer(brokers, logger)
	publisher := bookingEvents.NewKafkaPublisher(producer)
	coordinator := application.NewAssignmentCoordinator(scheduler.NewMemoryDeadlineStore(), logger)

	bookingSvc := application.NewBookingService(
		uow, reader, policyRepo, coordinator,
		bookingDomain.NewStandardPricingStrategy(),
		publisher, application.SystemClock{}, logger,
	)
	driverSvc := application.NewDriverService(uow, reader, policyRepo, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Bookings:        bookingSvc,
		Drivers:         driverSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// registerOnlineDriver creates a driver profile and puts it in the assignment pool.
func registerOnlineDriver(t *testing.T, stack *bookingStack) (uuid.UUID, application.Caller) {
	t.Helper()
	ctx := context.Background()
	caller := application.Caller{Actor: bookingDomain.ActorDriver, UserID: uuid.New()}

	drv, err := stack.Drivers.Register(ctx, caller, application.RegisterDriverRequest{
		Name:         "Somchai",
		Phone:        "+66811111111",
		VehiclePlate: "1กข-" + uuid.New().String()[:4],
		VehicleModel: "Toyota Vios",
		VehicleType:  "sedan",
	})
	require.NoError(t, err)
	_, err = stack.Drivers.SetOnline(ctx, caller, drv.ID, true)
	require.NoError(t, err)
	return drv.ID, caller
}

// tripRequest is the Siam Paragon to Chatuchak trip every integration booking asks for.
func tripRequest(notes string) application.CreateBookingRequest {
	return application.CreateBookingRequest{
		Pickup:      bookingDomain.Location{Address: "Siam Paragon", Latitude: 13.7462, Longitude: 100.5347},
		Dropoff:     bookingDomain.Location{Address: "Chatuchak Market", Latitude: 13.7999, Longitude: 100.5500},
		VehicleType: "sedan",
		Passengers:  2,
		Notes:       notes,
	}
}

// createConfirmedBooking creates a booking and confirms it as admin.
func createConfirmedBooking(t *testing.T, stack *bookingStack) (uuid.UUID, application.Caller) {
	t.Helper()
	ctx := context.Background()
	customer := application.Caller{Actor: bookingDomain.ActorCustomer, UserID: uuid.New()}

	bk, err := stack.Bookings.CreateBooking(ctx, customer.UserID, tripRequest(""))
	require.NoError(t, err)

	_, err = stack.Bookings.ConfirmBooking(ctx, bk.ID, adminCaller())
	require.NoError(t, err)
	return bk.ID, customer
}

func adminCaller() application.Caller {
	return application.Caller{Actor: bookingDomain.ActorAdmin, UserID: uuid.New()}
}

// publishTestEvent publishes a CloudEvent the way an upstream service would.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType, subject string, data interface{}) {
	t.Helper()
	producer := kafka.NewProducer(brokers, zap.NewNop())
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err)
	ce.Subject = subject

	require.NoError(t, producer.PublishEvent(context.Background(), topic, ce))
}

// waitForPaymentStatus polls the bookings table until the payment status matches.
func waitForPaymentStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expected string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var model repository.BookingModel
	require.Eventually(t, func() bool {
		err := db.Where("id = ?", bookingID).First(&model).Error
		return err == nil && model.PaymentStatus == expected
	}, timeout, 200*time.Millisecond, "payment status of %s never became %s", bookingID, expected)
	return model
}

// consumeEvents reads partition 0 of topic from the start and returns the first n events
// of eventType about subject.
func consumeEvents(t *testing.T, brokers []string, topic, eventType, subject string, n int, timeout time.Duration) []kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer func() { _ = reader.Close() }()
	require.NoError(t, reader.SetOffset(kafkago.FirstOffset))

	found := make([]kafka.CloudEvent, 0, n)
	for len(found) < n {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			require.NoError(t, ctx.Err(), "read %d of %d %q events on %s", len(found), n, eventType, topic)
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil || ce.Type != eventType || ce.Subject != subject {
			continue
		}
		found = append(found, ce)
	}
	return found
}

// createTopics creates single-partition topics so the first publish does not race auto-creation.
func createTopics(ctx context.Context, t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	client := &kafkago.Client{Addr: kafkago.TCP(brokers...), Timeout: 10 * time.Second}

	req := &kafkago.CreateTopicsRequest{}
	for _, topic := range topics {
		req.Topics = append(req.Topics, kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	resp, err := client.CreateTopics(ctx, req)
	require.NoError(t, err)
	for topic, topicErr := range resp.Errors {
		require.NoError(t, topicErr, "create topic %s", topic)
	}

	require.Eventually(t, func() bool {
		meta, err := client.Metadata(ctx, &kafkago.MetadataRequest{Topics: topics})
		if err != nil {
			return false
		}
		for _, topic := range meta.Topics {
			if topic.Error != nil || len(topic.Partitions) == 0 {
				return false
			}
		}
		return len(meta.Topics) == len(topics)
	}, 10*time.Second, 200*time.Millisecond, "topic metadata never propagated")
}

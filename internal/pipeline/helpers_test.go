package pipeline_test

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-bookworks/internal/logger"
	"ms-bookworks/internal/media"
	"ms-bookworks/internal/models"
	"ms-bookworks/internal/pdfgen"
	"ms-bookworks/internal/pipeline"
	"ms-bookworks/internal/providers"
	"ms-bookworks/internal/store"
)

// Mock implementations

type MockTextGen struct {
	mock.Mock
}

func (m *MockTextGen) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockFace struct {
	mock.Mock
}

func (m *MockFace) Name() string { return "mock-face" }

func (m *MockFace) Submit(ctx context.Context, faceURL, illustrationURL string) (string, error) {
	args := m.Called(ctx, faceURL, illustrationURL)
	return args.String(0), args.Error(1)
}

func (m *MockFace) PollStatus(ctx context.Context, handle string) (providers.TaskState, string, error) {
	args := m.Called(ctx, handle)
	return args.Get(0).(providers.TaskState), args.String(1), args.Error(2)
}

func (m *MockFace) HandleCallback(payload []byte) (string, string, error) {
	args := m.Called(payload)
	return args.String(0), args.String(1), args.Error(2)
}

type MockPayment struct {
	mock.Mock
}

func (m *MockPayment) CreateCustomer(name, email string) (string, error) {
	args := m.Called(name, email)
	return args.String(0), args.Error(1)
}

func (m *MockPayment) CreateCharge(orderID string, amount float64, customerID string) (*providers.PaymentIntent, error) {
	args := m.Called(orderID, amount, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.PaymentIntent), args.Error(1)
}

func (m *MockPayment) ParseWebhook(r *http.Request) (*providers.PaymentEvent, error) {
	args := m.Called(r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.PaymentEvent), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(order *models.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

// MockComposer stamps a single pixel so the output differs from the input
// without pulling font rendering into runner tests.
type MockComposer struct{}

func (MockComposer) Render(illustration image.Image, text, position, sizeClass string) (image.Image, error) {
	out := image.NewRGBA(illustration.Bounds())
	out.Set(0, 0, color.RGBA{A: 255})
	return out, nil
}

// stubLocker hands out every lock; Held simulates another pass owning one
// order.
type stubLocker struct {
	mu   sync.Mutex
	Held map[string]bool
}

func (l *stubLocker) AcquireOrder(orderID, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.Held[orderID], nil
}

func (l *stubLocker) ReleaseOrder(orderID, owner string) error { return nil }

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	mu          sync.Mutex
	Transitions []string
	Alerts      []string
}

func (e *eventRecorder) PublishStatusChanged(order *models.Order, from models.OrderStatus, runner string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Transitions = append(e.Transitions, string(from)+">"+string(order.Status))
	return nil
}

func (e *eventRecorder) PublishOpsAlert(orderID string, pageIndex int, stage, message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Alerts = append(e.Alerts, stage+": "+message)
	return nil
}

// Test environment

type env struct {
	p        *pipeline.Pipeline
	db       *store.DB
	media    *media.Store
	locker   *stubLocker
	events   *eventRecorder
	textGen  *MockTextGen
	face     *MockFace
	payment  *MockPayment
	notifier *MockNotifier
	deliver  *MockDeliverer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, store.Migrate(bunDB))
	t.Cleanup(func() { bunDB.Close() })

	mediaStore, err := media.NewStore(t.TempDir(), "http://cdn.test/media")
	require.NoError(t, err)

	e := &env{
		db:       &store.DB{Bun: bunDB},
		media:    mediaStore,
		locker:   &stubLocker{Held: map[string]bool{}},
		events:   &eventRecorder{},
		textGen:  &MockTextGen{},
		face:     &MockFace{},
		payment:  &MockPayment{},
		notifier: &MockNotifier{},
		deliver:  &MockDeliverer{},
	}

	log := logger.NewLogger()
	t.Cleanup(log.Close)

	e.p = &pipeline.Pipeline{
		DB:        e.db,
		Media:     mediaStore,
		Lock:      e.locker,
		Events:    e.events,
		TextGen:   e.textGen,
		Face:      e.face,
		Payment:   e.payment,
		Notifier:  e.notifier,
		Composer:  MockComposer{},
		Assembler: pdfgen.NewAssembler(mediaStore, log),
		Delivery:  e.deliver,
		Logger:    log,
		Client:    http.DefaultClient,

		PollDelay:     0,
		CancelAfter:   2 * time.Hour,
		CompleteAfter: 24 * time.Hour,
	}
	return e
}

// Fixtures

func (e *env) createTemplate(t *testing.T, pages ...models.TemplatePage) *models.BookTemplate {
	t.Helper()
	tpl := &models.BookTemplate{
		TemplateID:  "tpl-" + uuid.NewString()[:8],
		Name:        "Adventure at sea",
		Price:       49.99,
		PublishedAt: time.Now(),
		Pages:       pages,
	}
	require.NoError(t, e.db.CreateTemplate(tpl))
	return tpl
}

func defaultTemplatePage() models.TemplatePage {
	return models.TemplatePage{
		TextBoy:               "Tom sails away",
		TextGirl:              "Maya sails away",
		TextPosition:          models.PositionBottomCenter,
		FontSize:              models.FontSizeMedium,
		IllustrationBoyLight:  "base/boy_light.png",
		IllustrationBoyDark:   "base/boy_dark.png",
		IllustrationGirlLight: "base/girl_light.png",
		IllustrationGirlDark:  "base/girl_dark.png",
	}
}

func (e *env) createOrder(t *testing.T, status models.OrderStatus, tpl *models.BookTemplate) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderID:      uuid.NewString(),
		Status:       status,
		ChildName:    "Maya",
		ChildAge:     5,
		Gender:       models.GenderGirl,
		SkinTone:     models.SkinToneLight,
		FacePhotoRef: "uploads/face.jpg",
		BuyerName:    "Sam Carter",
		BuyerEmail:   "sam@example.com",
		TemplateID:   tpl.TemplateID,
		BookPrice:    tpl.Price,
		FinalPrice:   tpl.Price,
	}
	require.NoError(t, e.db.CreateOrder(order))
	return order
}

func (e *env) createPage(t *testing.T, order *models.Order, page models.GeneratedPage) {
	t.Helper()
	page.OrderID = order.OrderID
	require.NoError(t, e.db.CreatePage(&page))
}

func (e *env) orderStatus(t *testing.T, orderID string) models.OrderStatus {
	t.Helper()
	order, err := e.db.GetOrderByID(orderID)
	require.NoError(t, err)
	return order.Status
}

func (e *env) pages(t *testing.T, orderID string) []models.GeneratedPage {
	t.Helper()
	pages, err := e.db.GetPagesByOrder(orderID)
	require.NoError(t, err)
	return pages
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 140, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

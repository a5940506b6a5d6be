package pipeline_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-bookworks/internal/models"
	"ms-bookworks/internal/providers"
)

// artifactServer serves a PNG artifact and counts downloads.
func artifactServer(t *testing.T) (*httptest.Server, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t, 64, 64))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestPersonalizationInit(t *testing.T) {
	e := newEnv(t)
	skipPage := defaultTemplatePage()
	skipPage.SkipPersonalization = true
	tpl := e.createTemplate(t, skipPage, defaultTemplatePage())
	order := e.createOrder(t, models.StatusAssetsText, tpl)
	e.createPage(t, order, models.GeneratedPage{PageIndex: 0, Text: "a", SkipPersonalization: true})
	e.createPage(t, order, models.GeneratedPage{PageIndex: 1, Text: "b"})

	// Only the non-skip page reaches the provider, with the girl/light base.
	e.face.On("Submit", mock.Anything, e.media.URL(order.FacePhotoRef), e.media.URL("base/girl_light.png")).
		Return("task-1", nil).Once()

	result := e.p.RunPersonalizationInit()
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)

	pages := e.pages(t, order.OrderID)
	assert.Equal(t, "base/girl_light.png", pages[0].IllustrationRef, "skip page copies the base illustration")
	assert.Empty(t, pages[0].TaskHandle)
	assert.Equal(t, "task-1", pages[1].TaskHandle)
	assert.Empty(t, pages[1].IllustrationRef)

	got, err := e.db.GetOrderByID(order.OrderID)
	require.NoError(t, err)
	assert.True(t, got.PersonalizationInitiated)
	assert.Equal(t, models.StatusAssetsText, got.Status, "init does not advance the status")

	// The order left the init queue; a rerun submits nothing new.
	again := e.p.RunPersonalizationInit()
	assert.Equal(t, 0, again.Total)
	e.face.AssertExpectations(t)
}

func TestPersonalizationInit_SubmitFailureKeepsOrderQueued(t *testing.T) {
	e := newEnv(t)
	tpl := e.createTemplate(t, defaultTemplatePage())
	order := e.createOrder(t, models.StatusAssetsText, tpl)
	e.createPage(t, order, models.GeneratedPage{PageIndex: 0, Text: "a"})

	e.face.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("provider down")).Once()

	result := e.p.RunPersonalizationInit()
	assert.Equal(t, 0, result.Processed)
	assert.NotEmpty(t, result.Errors)

	got, err := e.db.GetOrderByID(order.OrderID)
	require.NoError(t, err)
	assert.False(t, got.PersonalizationInitiated)
	assert.Equal(t, 1, got.Pages[0].FailureCount)
	assert.NotEmpty(t, e.events.Alerts)
}

func TestPersonalizationCheck_PollCompletes(t *testing.T) {
	e := newEnv(t)
	srv, hits := artifactServer(t)

	tpl := e.createTemplate(t, defaultTemplatePage(), defaultTemplatePage())
	order := e.createOrder(t, models.StatusAssetsText, tpl)
	order.PersonalizationInitiated = true
	require.NoError(t, e.db.UpdateOrder(order))
	e.createPage(t, order, models.GeneratedPage{PageIndex: 0, Text: "a", TaskHandle: "task-0"})
	e.createPage(t, order, models.GeneratedPage{PageIndex: 1, Text: "b", TaskHandle: "task-1"})

	e.face.On("PollStatus", mock.Anything, "task-0").
		Return(providers.TaskCompleted, srv.URL+"/result0.png", nil).Once()
	e.face.On("PollStatus", mock.Anything, "task-1").
		Return(providers.TaskCompleted, srv.URL+"/result1.png", nil).Once()

	result := e.p.RunPersonalizationCheck()
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.StatusAssetsIllustration, e.orderStatus(t, order.OrderID))
	assert.EqualValues(t, 2, *hits)

	pages := e.pages(t, order.OrderID)
	for _, page := range pages {
		assert.NotEmpty(t, page.IllustrationRef)
		assert.Empty(t, page.TaskHandle, "resolved handles are cleared")
		assert.True(t, e.media.Exists(page.IllustrationRef), "artifact must be persisted")
	}
	e.face.AssertExpectations(t)
}

func TestPersonalizationCheck_PendingStays(t *testing.T) {
	e := newEnv(t)
	tpl := e.createTemplate(t, defaultTemplatePage())
	order := e.createOrder(t, models.StatusAssetsText, tpl)
	order.PersonalizationInitiated = true
	require.NoError(t, e.db.UpdateOrder(order))
	e.createPage(t, order, models.GeneratedPage{PageIndex: 0, Text: "a", TaskHandle: "task-0"})

	e.face.On("PollStatus", mock.Anything, "task-0").
		Return(providers.TaskPending, "", nil).Once()

	result := e.p.RunPersonalizationCheck()
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.StatusAssetsText, e.orderStatus(t, order.OrderID))
}

func TestPersonalizationCheck_FailedTaskResubmitted(t *testing.T) {
	e := newEnv(t)
	srv, _ := artifactServer(t)

	tpl := e.createTemplate(t, defaultTemplatePage())
	order := e.createOrder(t, models.StatusAssetsText, tpl)
	order.PersonalizationInitiated = true
	require.NoError(t, e.db.UpdateOrder(order))
	e.createPage(t, order, models.GeneratedPage{PageIndex: 0, Text: "a", TaskHandle: "task-0"})

	e.face.On("PollStatus", mock.Anything, "task-0").
		Return(providers.TaskFailed, "", nil).Once()

	result := e.p.RunPersonalizationCheck()
	assert.NotEmpty(t, result.Errors)
	assert.NotEmpty(t, e.events.Alerts)

	pages := e.pages(t, order.OrderID)
	assert.Empty(t, pages[0].TaskHandle, "failed handle is discarded")
	assert.Equal(t, 1, pages[0].FailureCount)

	// The next pass resubmits the page and resolves it.
	e.face.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return("task-0b", nil).Once()

	result = e.p.RunPersonalizationCheck()
	assert.Empty(t, result.Errors)

	e.face.On("PollStatus", mock.Anything, "task-0b").
		Return(providers.TaskCompleted, srv.URL+"/r.png", nil).Once()

	result = e.p.RunPersonalizationCheck()
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.StatusAssetsIllustration, e.orderStatus(t, order.OrderID))
	e.face.AssertExpectations(t)
}

func TestPersonalizationCallback_LastPageAdvances(t *testing.T) {
	e := newEnv(t)
	srv, _ := artifactServer(t)

	tpl := e.createTemplate(t, defaultTemplatePage(), defaultTemplatePage())
	order := e.createOrder(t, models.StatusAssetsText, tpl)
	order.PersonalizationInitiated = true
	require.NoError(t, e.db.UpdateOrder(order))
	e.createPage(t, order, models.GeneratedPage{PageIndex: 0, Text: "a", IllustrationRef: "done/p0.png"})
	e.createPage(t, order, models.GeneratedPage{PageIndex: 1, Text: "b", TaskHandle: "task-1"})

	payload := []byte(`{"job_id":"task-1","status":"COMPLETED","result_url":"` + srv.URL + `/r.png"}`)
	e.face.On("HandleCallback", payload).Return("task-1", srv.URL+"/r.png", nil).Once()

	result := e.p.HandlePersonalizationCallback(payload)
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)

	// The last pending page advanced the order directly.
	assert.Equal(t, models.StatusAssetsIllustration, e.orderStatus(t, order.OrderID))
	e.face.AssertExpectations(t)
}

func TestPersonalizationCallback_DuplicateIgnored(t *testing.T) {
	e := newEnv(t)
	srv, hits := artifactServer(t)

	tpl := e.createTemplate(t, defaultTemplatePage())
	order := e.createOrder(t, models.StatusAssetsText, tpl)
	order.PersonalizationInitiated = true
	require.NoError(t, e.db.UpdateOrder(order))

	// The page still holds its handle but the result already landed.
	e.createPage(t, order, models.GeneratedPage{
		PageIndex: 0, Text: "a", TaskHandle: "task-1", IllustrationRef: "done/p0.png",
	})

	payload := []byte(`{"job_id":"task-1"}`)
	e.face.On("HandleCallback", payload).Return("task-1", srv.URL+"/r.png", nil).Once()

	result := e.p.HandlePersonalizationCallback(payload)
	assert.Empty(t, result.Errors)
	assert.EqualValues(t, 0, *hits, "a duplicate callback must not download again")

	pages := e.pages(t, order.OrderID)
	assert.Equal(t, "done/p0.png", pages[0].IllustrationRef)
}

func TestPersonalizationCallback_UnknownHandle(t *testing.T) {
	e := newEnv(t)

	payload := []byte(`{"job_id":"ghost"}`)
	e.face.On("HandleCallback", payload).Return("ghost", "http://x/r.png", nil).Once()

	result := e.p.HandlePersonalizationCallback(payload)
	assert.Empty(t, result.Errors)
	assert.Contains(t, result.Message, "unknown task handle")
}

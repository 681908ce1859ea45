package service_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenselens/licenselens-backend/internal/analysis/cache"
	"github.com/licenselens/licenselens-backend/internal/analysis/imaging"
	"github.com/licenselens/licenselens-backend/internal/analysis/service"
	"github.com/licenselens/licenselens-backend/internal/analysis/store"
	"github.com/licenselens/licenselens-backend/pkg/errors"
	"github.com/licenselens/licenselens-backend/pkg/logger"
)

type fakeModel struct {
	reply     string
	err       error
	calls     int
	gotPrompt string
}

func (m *fakeModel) Analyze(ctx context.Context, promptText string, imageJPEG []byte) (string, error) {
	m.calls++
	m.gotPrompt = promptText
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) Model() string { return "gemini-2.0-flash-thinking-exp-1219" }

type fakeCache struct {
	entries map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{entries: make(map[string]string)} }

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	return c.entries[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value string) error {
	c.entries[key] = value
	return nil
}

// fakeEvents records published events. With broken set it drops them
// silently, the way the real publisher swallows broker failures.
type fakeEvents struct {
	completed []*domain.Analysis
	failed    []string
	broken    bool
}

func (f *fakeEvents) PublishAnalysisCompleted(ctx context.Context, a *domain.Analysis) {
	if f.broken {
		return
	}
	f.completed = append(f.completed, a)
}

func (f *fakeEvents) PublishAnalysisFailed(ctx context.Context, model, imageSHA256, instructions, reason string) {
	if f.broken {
		return
	}
	f.failed = append(f.failed, reason)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newService(model *fakeModel, c service.Cache) (*service.Service, *store.Memory) {
	return newServiceWithEvents(model, c, nil)
}

func newServiceWithEvents(model *fakeModel, c service.Cache, ep service.EventPublisher) (*service.Service, *store.Memory) {
	mem := store.NewMemory(time.Hour)
	return service.New(model, mem, c, ep, logger.New("test", "test")), mem
}

func TestAnalyze_EmptyInstructions(t *testing.T) {
	model := &fakeModel{reply: "unused"}
	svc, mem := newService(model, nil)
	defer mem.Close()

	_, err := svc.Analyze(context.Background(), pngBytes(t), "   \n\t ")

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)
	assert.Zero(t, model.calls)
}

func TestAnalyze_NotAnImage(t *testing.T) {
	model := &fakeModel{reply: "unused"}
	svc, mem := newService(model, nil)
	defer mem.Close()

	_, err := svc.Analyze(context.Background(), []byte("this is a text file"), "extract the name")

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NO_IMAGE", appErr.Code)
	assert.Equal(t, 422, appErr.StatusCode)
	assert.Zero(t, model.calls)
}

func TestAnalyze_Success(t *testing.T) {
	model := &fakeModel{reply: "**Name:** Jane Doe\n**DOB:** 1990-01-01"}
	svc, mem := newService(model, nil)
	defer mem.Close()

	got, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name and DOB")
	require.NoError(t, err)

	assert.Equal(t, model.reply, got.ResultText)
	assert.False(t, got.Cached)
	assert.Equal(t, "gemini-2.0-flash-thinking-exp-1219", got.Model)
	assert.Len(t, got.ImageSHA256, 64)
	assert.Contains(t, model.gotPrompt, "extract the name and DOB")
	assert.True(t, strings.HasPrefix(model.gotPrompt, "Please analyze this driver's license image and "))

	stored, err := svc.GetAnalysis(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ResultText, stored.ResultText)
}

func TestAnalyze_CacheHitSkipsModel(t *testing.T) {
	model := &fakeModel{reply: "fresh reply"}
	c := newFakeCache()
	svc, mem := newService(model, c)
	defer mem.Close()

	normalized, err := imaging.Normalize(pngBytes(t))
	require.NoError(t, err)
	c.entries[cache.Key(normalized.JPEG, "extract the name")] = "cached reply"

	got, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name")
	require.NoError(t, err)

	assert.Equal(t, "cached reply", got.ResultText)
	assert.True(t, got.Cached)
	assert.Zero(t, got.DurationMs)
	assert.Zero(t, model.calls)
}

func TestAnalyze_CacheMissStoresResult(t *testing.T) {
	model := &fakeModel{reply: "fresh reply"}
	c := newFakeCache()
	svc, mem := newService(model, c)
	defer mem.Close()

	got, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name")
	require.NoError(t, err)

	assert.False(t, got.Cached)
	assert.Equal(t, 1, model.calls)
	require.Len(t, c.entries, 1)
	for _, v := range c.entries {
		assert.Equal(t, "fresh reply", v)
	}
}

func TestAnalyze_ModelFailure(t *testing.T) {
	model := &fakeModel{err: stderrors.New("quota exceeded")}
	svc, mem := newService(model, nil)
	defer mem.Close()

	_, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name")

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ANALYSIS_FAILED", appErr.Code)
	assert.Equal(t, 502, appErr.StatusCode)
	assert.Equal(t, "analysis failed, please try again", appErr.Message)
}

func TestAnalyze_PublishesCompletedEvent(t *testing.T) {
	model := &fakeModel{reply: "**Name:** Jane Doe"}
	ep := &fakeEvents{}
	svc, mem := newServiceWithEvents(model, nil, ep)
	defer mem.Close()

	got, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name")
	require.NoError(t, err)

	require.Len(t, ep.completed, 1)
	assert.Equal(t, got.ID, ep.completed[0].ID)
	assert.Empty(t, ep.failed)
}

func TestAnalyze_PublishesFailedEvent(t *testing.T) {
	model := &fakeModel{err: stderrors.New("quota exceeded")}
	ep := &fakeEvents{}
	svc, mem := newServiceWithEvents(model, nil, ep)
	defer mem.Close()

	_, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name")
	require.Error(t, err)

	require.Len(t, ep.failed, 1)
	assert.Equal(t, "quota exceeded", ep.failed[0])
	assert.Empty(t, ep.completed)
}

func TestAnalyze_BrokenPublisherDoesNotFailRequest(t *testing.T) {
	model := &fakeModel{reply: "**Name:** Jane Doe"}
	ep := &fakeEvents{broken: true}
	svc, mem := newServiceWithEvents(model, nil, ep)
	defer mem.Close()

	got, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name")
	require.NoError(t, err)
	assert.Equal(t, model.reply, got.ResultText)
	assert.Empty(t, ep.completed)
}

func TestGetAnalysis_NotFound(t *testing.T) {
	svc, mem := newService(&fakeModel{}, nil)
	defer mem.Close()

	_, err := svc.GetAnalysis(context.Background(), "4aa7b6b2-2ad8-4a9c-8a5f-000000000000")

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestListAnalyses_DefaultLimit(t *testing.T) {
	model := &fakeModel{reply: "reply"}
	svc, mem := newService(model, nil)
	defer mem.Close()

	_, err := svc.Analyze(context.Background(), pngBytes(t), "extract the name")
	require.NoError(t, err)

	got, err := svc.ListAnalyses(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

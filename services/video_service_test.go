package services_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/storage/storagetest"
	"github.com/sahilchouksey/uniportal-api/services/videohost"
)

type fakeHost struct {
	mu        sync.Mutex
	statuses  []videohost.Status
	checkErr  error
	ticketErr error
	uploaded  []byte
	finalized []string
	deleted   []string

	afterUpload func()
}

func (h *fakeHost) CreateUploadTicket(ctx context.Context, name string, size int64) (*videohost.UploadTicket, error) {
	if h.ticketErr != nil {
		return nil, h.ticketErr
	}
	return &videohost.UploadTicket{VideoID: "host-1", UploadURL: "/upload/host-1"}, nil
}

func (h *fakeHost) Upload(ctx context.Context, uploadURL string, content io.Reader, size int64) error {
	data, err := io.ReadAll(content)
	h.mu.Lock()
	h.uploaded = data
	h.mu.Unlock()
	if h.afterUpload != nil {
		h.afterUpload()
	}
	return err
}

func (h *fakeHost) CheckStatus(ctx context.Context, videoID string) (*videohost.VideoStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.checkErr != nil {
		return nil, h.checkErr
	}
	status := videohost.StatusTranscoding
	if len(h.statuses) > 0 {
		status = h.statuses[0]
		h.statuses = h.statuses[1:]
	}
	return &videohost.VideoStatus{VideoID: videoID, Status: status, DurationSeconds: 90, Error: "corrupt"}, nil
}

func (h *fakeHost) Finalize(ctx context.Context, videoID string, meta videohost.FinalizeRequest) (*videohost.FinalizeResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finalized = append(h.finalized, meta.Title)
	return &videohost.FinalizeResult{VideoID: videoID, PlayerURL: "https://player/" + videoID}, nil
}

func (h *fakeHost) Delete(ctx context.Context, videoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, videoID)
	return nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func newClock() *clock                   { return &clock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)} }

func newVideoFixture(t *testing.T, host *fakeHost) (*services.VideoService, model.Course, *clock) {
	t.Helper()
	svc, course, clk, _ := newVideoFixtureDB(t, host)
	return svc, course, clk
}

func newVideoFixtureDB(t *testing.T, host *fakeHost) (*services.VideoService, model.Course, *clock, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	course := model.Course{Title: "Go", IsPublished: true}
	require.NoError(t, db.Create(&course).Error)
	clk := newClock()
	svc := services.NewVideoService(db, host, nil, 10*1024*1024).WithClock(clk.Now)
	return svc, course, clk, db
}

func TestNextCheckDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, services.NextCheckDelay(0))
	assert.Equal(t, time.Minute, services.NextCheckDelay(1))
	assert.Equal(t, 16*time.Minute, services.NextCheckDelay(5))
	assert.Equal(t, 30*time.Minute, services.NextCheckDelay(6))
	assert.Equal(t, 30*time.Minute, services.NextCheckDelay(40))
}

func TestVideoUploadAndComplete(t *testing.T) {
	host := &fakeHost{statuses: []videohost.Status{videohost.StatusTranscoding, videohost.StatusAvailable}}
	svc, course, clk := newVideoFixture(t, host)
	ctx := context.Background()

	video, err := svc.Upload(ctx, course.ID, services.VideoInput{Title: "Intro"}, storagetest.FileHeader(t, "intro.mp4", []byte("mp4")))
	require.NoError(t, err)
	assert.Equal(t, model.VideoStatusProcessing, video.Status)
	assert.Equal(t, "mp4", string(host.uploaded))

	processed, err := svc.PollDue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, processed, "first check is not due yet")

	clk.Advance(services.VideoPollBaseDelay)
	processed, err = svc.PollDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	view, err := svc.Status(ctx, video.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Job)
	assert.Equal(t, 1, view.Job.Attempts)
	assert.Equal(t, model.VideoJobPolling, view.Job.Status)
	assert.True(t, view.Job.NextCheckAt.Equal(clk.now.Add(services.NextCheckDelay(1))))

	clk.Advance(services.NextCheckDelay(1))
	_, err = svc.PollDue(ctx, 10)
	require.NoError(t, err)

	view, err = svc.Status(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VideoStatusAvailable, view.Video.Status)
	assert.Equal(t, "https://player/host-1", view.Video.PlayerURL)
	assert.Equal(t, 90, view.Video.DurationSeconds)
	assert.Equal(t, model.VideoJobCompleted, view.Job.Status)
	assert.Equal(t, []string{"Intro"}, host.finalized)
}

func TestVideoHostErrorFailsJob(t *testing.T) {
	host := &fakeHost{statuses: []videohost.Status{videohost.StatusError}}
	svc, course, clk := newVideoFixture(t, host)
	ctx := context.Background()

	video, err := svc.Upload(ctx, course.ID, services.VideoInput{Title: "Broken"}, storagetest.FileHeader(t, "b.mov", []byte("mov")))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	_, err = svc.PollDue(ctx, 10)
	require.NoError(t, err)

	view, err := svc.Status(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VideoStatusFailed, view.Video.Status)
	assert.Equal(t, model.VideoJobFailed, view.Job.Status)
	assert.Equal(t, "corrupt", view.Job.LastError)
}

func TestVideoJobGivesUp(t *testing.T) {
	host := &fakeHost{checkErr: errors.New("timeout")}
	svc, course, clk := newVideoFixture(t, host)
	ctx := context.Background()

	video, err := svc.Upload(ctx, course.ID, services.VideoInput{Title: "Slow"}, storagetest.FileHeader(t, "s.mp4", []byte("mp4")))
	require.NoError(t, err)

	for i := 0; i < services.MaxVideoPollAttempts; i++ {
		clk.Advance(services.VideoPollMaxDelay)
		_, err = svc.PollDue(ctx, 10)
		require.NoError(t, err)
	}

	view, err := svc.Status(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, services.MaxVideoPollAttempts, view.Job.Attempts)
	assert.Equal(t, model.VideoJobFailed, view.Job.Status)
	assert.Equal(t, "timeout", view.Job.LastError)
}

func TestVideoUploadRejections(t *testing.T) {
	host := &fakeHost{ticketErr: errors.New("quota")}
	svc, course, _ := newVideoFixture(t, host)
	ctx := context.Background()

	_, err := svc.Upload(ctx, course.ID, services.VideoInput{Title: "x"}, storagetest.FileHeader(t, "x.png", []byte("png")))
	assert.ErrorIs(t, err, storage.ErrInvalidUpload)

	_, err = svc.Upload(ctx, 9999, services.VideoInput{Title: "x"}, storagetest.FileHeader(t, "x.mp4", []byte("mp4")))
	assert.ErrorIs(t, err, services.ErrCourseNotFound)

	_, err = svc.Upload(ctx, course.ID, services.VideoInput{Title: "x"}, storagetest.FileHeader(t, "x.mp4", []byte("mp4")))
	assert.ErrorIs(t, err, services.ErrVideoHost)
}

func TestVideoDelete(t *testing.T) {
	host := &fakeHost{}
	svc, course, _ := newVideoFixture(t, host)
	ctx := context.Background()

	video, err := svc.Upload(ctx, course.ID, services.VideoInput{Title: "Gone"}, storagetest.FileHeader(t, "g.mp4", []byte("mp4")))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, video.ID))
	assert.Equal(t, []string{"host-1"}, host.deleted)
	assert.ErrorIs(t, svc.Delete(ctx, video.ID), services.ErrVideoNotFound)
}

func TestVideoFinalizeFallsBackToVideoRow(t *testing.T) {
	host := &fakeHost{statuses: []videohost.Status{videohost.StatusAvailable}}
	svc, course, clk, db := newVideoFixtureDB(t, host)
	ctx := context.Background()

	video, err := svc.Upload(ctx, course.ID, services.VideoInput{Title: "Intro", Description: "first"}, storagetest.FileHeader(t, "intro.mp4", []byte("mp4")))
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.VideoUploadJob{}).Where("video_id = ?", video.ID).
		Update("payload", datatypes.JSON("{broken")).Error)

	clk.Advance(services.VideoPollBaseDelay)
	_, err = svc.PollDue(ctx, 10)
	require.NoError(t, err)

	view, err := svc.Status(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VideoStatusAvailable, view.Video.Status)
	assert.Equal(t, []string{"Intro"}, host.finalized)
}

func TestVideoJobRegistrationFailureCleansUp(t *testing.T) {
	host := &fakeHost{}
	svc, course, _, db := newVideoFixtureDB(t, host)
	host.afterUpload = func() {
		require.NoError(t, db.Migrator().DropTable(&model.VideoUploadJob{}))
	}
	ctx := context.Background()

	_, err := svc.Upload(ctx, course.ID, services.VideoInput{Title: "Orphan"}, storagetest.FileHeader(t, "o.mp4", []byte("mp4")))
	require.Error(t, err)

	var video model.Video
	require.NoError(t, db.Where("course_id = ?", course.ID).First(&video).Error)
	assert.Equal(t, model.VideoStatusFailed, video.Status)
	assert.Empty(t, video.HostVideoID, "the failed transaction is rolled back")
	assert.Equal(t, []string{"host-1"}, host.deleted)
}

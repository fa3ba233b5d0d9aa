package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services/softdelete"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/services/videohost"
	"github.com/sahilchouksey/uniportal-api/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// MaxVideoPollAttempts is the number of status checks before a job gives up.
	MaxVideoPollAttempts = 20
	// VideoPollBaseDelay is the wait before the first status check.
	VideoPollBaseDelay = 30 * time.Second
	// VideoPollMaxDelay caps the wait between two checks.
	VideoPollMaxDelay = 30 * time.Minute
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrVideoNotFound  = errors.New("video not found")
	ErrVideoHost      = errors.New("video host request failed")
)

// VideoHost is the contract of the external video host.
type VideoHost interface {
	CreateUploadTicket(ctx context.Context, name string, size int64) (*videohost.UploadTicket, error)
	Upload(ctx context.Context, uploadURL string, content io.Reader, size int64) error
	CheckStatus(ctx context.Context, videoID string) (*videohost.VideoStatus, error)
	Finalize(ctx context.Context, videoID string, meta videohost.FinalizeRequest) (*videohost.FinalizeResult, error)
	Delete(ctx context.Context, videoID string) error
}

// NextCheckDelay is the wait after the given number of checks:
// 30s doubled per attempt, capped at 30m.
func NextCheckDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= 16 {
		return VideoPollMaxDelay
	}
	d := VideoPollBaseDelay << uint(attempts)
	if d > VideoPollMaxDelay {
		return VideoPollMaxDelay
	}
	return d
}

// VideoInput is the metadata of an uploaded video.
type VideoInput struct {
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	Description string `json:"description" form:"description"`
	SortOrder   int    `json:"sort_order" form:"sort_order" validate:"gte=0"`
}

// VideoStatusView is what admins see while a video is processed.
type VideoStatusView struct {
	Video model.Video           `json:"video"`
	Job   *model.VideoUploadJob `json:"job,omitempty"`
}

// VideoService uploads course videos to the host and tracks their processing.
type VideoService struct {
	db            *gorm.DB
	host          VideoHost
	log           *utils.Logger
	maxVideoBytes int64
	now           func() time.Time
}

// NewVideoService creates a video service.
func NewVideoService(db *gorm.DB, host VideoHost, log *utils.Logger, maxVideoBytes int64) *VideoService {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &VideoService{db: db, host: host, log: log, maxVideoBytes: maxVideoBytes, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *VideoService) WithClock(now func() time.Time) *VideoService {
	s.now = now
	return s
}

// Upload stores the video row, sends the file to the host and registers a
// polling job. It does not wait for the host to finish processing.
func (s *VideoService) Upload(ctx context.Context, courseID uint, in VideoInput, file *multipart.FileHeader) (*model.Video, error) {
	if err := storage.ValidateUpload(file, storage.KindVideo, s.maxVideoBytes); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Course{}).Where("id = ?", courseID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrCourseNotFound
	}

	video := model.Video{
		CourseID:    courseID,
		Title:       in.Title,
		Description: in.Description,
		SortOrder:   in.SortOrder,
		Status:      model.VideoStatusUploading,
	}
	if err := s.db.WithContext(ctx).Create(&video).Error; err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}

	ticket, err := s.host.CreateUploadTicket(ctx, in.Title, file.Size)
	if err != nil {
		s.markFailed(ctx, video.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrVideoHost, err)
	}

	content, err := file.Open()
	if err != nil {
		s.markFailed(ctx, video.ID, err)
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer content.Close()

	if err := s.host.Upload(ctx, ticket.UploadURL, content, file.Size); err != nil {
		s.markFailed(ctx, video.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrVideoHost, err)
	}

	payload, _ := json.Marshal(videohost.FinalizeRequest{Title: in.Title, Description: in.Description})
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Video{}).Where("id = ?", video.ID).Updates(map[string]interface{}{
			"host_video_id": ticket.VideoID,
			"status":        model.VideoStatusProcessing,
		}).Error; err != nil {
			return err
		}
		job := model.VideoUploadJob{
			VideoID:     video.ID,
			HostVideoID: ticket.VideoID,
			Status:      model.VideoJobPolling,
			HostStatus:  string(videohost.StatusUploading),
			NextCheckAt: s.now().Add(VideoPollBaseDelay),
			Payload:     datatypes.JSON(payload),
		}
		return tx.Create(&job).Error
	})
	if err != nil {
		s.markFailed(ctx, video.ID, err)
		if derr := s.host.Delete(ctx, ticket.VideoID); derr != nil {
			s.log.Warn("failed to delete orphaned hosted video", "video_id", video.ID, "host_video_id", ticket.VideoID, "error", derr)
		}
		return nil, fmt.Errorf("register video job: %w", err)
	}

	video.HostVideoID = ticket.VideoID
	video.Status = model.VideoStatusProcessing
	s.log.Info("video uploaded to host", "video_id", video.ID, "host_video_id", ticket.VideoID)
	return &video, nil
}

func (s *VideoService) markFailed(ctx context.Context, videoID uint, cause error) {
	if err := s.db.WithContext(ctx).Model(&model.Video{}).Where("id = ?", videoID).
		Update("status", model.VideoStatusFailed).Error; err != nil {
		s.log.Warn("failed to mark video as failed", "video_id", videoID, "error", err)
	}
	s.log.Error("video upload failed", "video_id", videoID, "error", cause)
}

// Status returns a video with its most recent upload job.
func (s *VideoService) Status(ctx context.Context, videoID uint) (*VideoStatusView, error) {
	var view VideoStatusView
	if err := s.db.WithContext(ctx).First(&view.Video, videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	var jobs []model.VideoUploadJob
	if err := s.db.WithContext(ctx).Where("video_id = ?", videoID).Order("id DESC").Limit(1).Find(&jobs).Error; err != nil {
		return nil, err
	}
	if len(jobs) > 0 {
		view.Job = &jobs[0]
	}
	return &view, nil
}

// PollDue checks every polling job whose next check is due and returns how
// many were processed. A failing job never stops the others.
func (s *VideoService) PollDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []model.VideoUploadJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND next_check_at <= ?", model.VideoJobPolling, s.now()).
		Order("next_check_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return 0, fmt.Errorf("load due video jobs: %w", err)
	}

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.poll(ctx, &jobs[i]); err != nil {
			s.log.Warn("video job check failed", "job_id", jobs[i].ID, "error", err)
		}
	}
	return len(jobs), nil
}

func (s *VideoService) poll(ctx context.Context, job *model.VideoUploadJob) error {
	job.Attempts++

	status, err := s.host.CheckStatus(ctx, job.HostVideoID)
	if err != nil {
		return s.retryOrFail(ctx, job, err.Error())
	}
	job.HostStatus = string(status.Status)

	switch status.Status {
	case videohost.StatusAvailable:
		meta, err := s.finalizeMeta(ctx, job)
		if err != nil {
			return s.retryOrFail(ctx, job, err.Error())
		}
		result, err := s.host.Finalize(ctx, job.HostVideoID, meta)
		if err != nil {
			return s.retryOrFail(ctx, job, err.Error())
		}
		return s.complete(ctx, job, status.DurationSeconds, result.PlayerURL)
	case videohost.StatusError:
		msg := status.Error
		if msg == "" {
			msg = "video host reported an error"
		}
		return s.fail(ctx, job, msg)
	default:
		return s.retryOrFail(ctx, job, "")
	}
}

// finalizeMeta reads the title and description stored with the job. An
// unreadable payload falls back to the current video row.
func (s *VideoService) finalizeMeta(ctx context.Context, job *model.VideoUploadJob) (videohost.FinalizeRequest, error) {
	var meta videohost.FinalizeRequest
	err := json.Unmarshal(job.Payload, &meta)
	if err == nil {
		return meta, nil
	}
	s.log.Warn("unreadable video job payload, using video row", "job_id", job.ID, "video_id", job.VideoID, "error", err)

	var video model.Video
	if err := s.db.WithContext(ctx).Unscoped().First(&video, job.VideoID).Error; err != nil {
		return meta, fmt.Errorf("load video %d: %w", job.VideoID, err)
	}
	return videohost.FinalizeRequest{Title: video.Title, Description: video.Description}, nil
}

func (s *VideoService) retryOrFail(ctx context.Context, job *model.VideoUploadJob, lastError string) error {
	if job.Attempts >= MaxVideoPollAttempts {
		if lastError == "" {
			lastError = fmt.Sprintf("video not available after %d checks", job.Attempts)
		}
		return s.fail(ctx, job, lastError)
	}
	return s.db.WithContext(ctx).Model(&model.VideoUploadJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"attempts":      job.Attempts,
		"host_status":   job.HostStatus,
		"last_error":    lastError,
		"next_check_at": s.now().Add(NextCheckDelay(job.Attempts)),
	}).Error
}

func (s *VideoService) complete(ctx context.Context, job *model.VideoUploadJob, duration int, playerURL string) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Video{}).Where("id = ?", job.VideoID).Updates(map[string]interface{}{
			"status":           model.VideoStatusAvailable,
			"player_url":       playerURL,
			"duration_seconds": duration,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&model.VideoUploadJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       model.VideoJobCompleted,
			"attempts":     job.Attempts,
			"host_status":  job.HostStatus,
			"last_error":   "",
			"completed_at": now,
		}).Error
	})
	if err == nil {
		s.log.Info("video available", "video_id", job.VideoID, "attempts", job.Attempts)
	}
	return err
}

func (s *VideoService) fail(ctx context.Context, job *model.VideoUploadJob, reason string) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Video{}).Where("id = ?", job.VideoID).
			Update("status", model.VideoStatusFailed).Error; err != nil {
			return err
		}
		return tx.Model(&model.VideoUploadJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       model.VideoJobFailed,
			"attempts":     job.Attempts,
			"host_status":  job.HostStatus,
			"last_error":   reason,
			"completed_at": now,
		}).Error
	})
	if err == nil {
		s.log.Warn("video processing failed", "video_id", job.VideoID, "reason", reason)
	}
	return err
}

// Delete soft deletes a video and removes it from the host. A host failure
// is logged only.
func (s *VideoService) Delete(ctx context.Context, videoID uint) error {
	var video model.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&video, videoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVideoNotFound
			}
			return err
		}
		if err := softdelete.Delete(tx, softdelete.Videos, videoID); err != nil {
			return err
		}
		return tx.Model(&model.VideoUploadJob{}).
			Where("video_id = ? AND status = ?", videoID, model.VideoJobPolling).
			Updates(map[string]interface{}{"status": model.VideoJobFailed, "last_error": "video deleted"}).Error
	})
	if err != nil {
		return err
	}

	if video.HostVideoID != "" && s.host != nil {
		if err := s.host.Delete(ctx, video.HostVideoID); err != nil {
			s.log.Warn("failed to delete hosted video", "video_id", videoID, "host_video_id", video.HostVideoID, "error", err)
		}
	}
	return nil
}

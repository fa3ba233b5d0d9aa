package course

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/handlers"
	"github.com/sahilchouksey/uniportal-api/model"
	"github.com/sahilchouksey/uniportal-api/services"
	"github.com/sahilchouksey/uniportal-api/services/storage"
	"github.com/sahilchouksey/uniportal-api/utils/middleware"
	"github.com/sahilchouksey/uniportal-api/utils/response"
)

// ListVideos handles GET /api/courses/:id/videos. Students only see videos
// that finished processing; admins see every status.
func (h *CourseHandler) ListVideos(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}
	var course model.Course
	if err := visible(c, h.db).First(&course, id).Error; err != nil {
		return response.NotFound(c, "Course not found")
	}

	query := h.db.Where("course_id = ?", id)
	if !middleware.IsAdmin(c) {
		query = query.Where("status = ?", model.VideoStatusAvailable)
	}
	var videos []model.Video
	if err := query.Order("sort_order ASC, id ASC").Find(&videos).Error; err != nil {
		return response.Internal(c, h.log, "Failed to fetch videos", err)
	}
	return response.Success(c, videos)
}

// UploadVideo handles POST /api/Admin/courses/:id/videos. The file is sent to
// the video host and the response returns once the upload finished; the
// host's processing is followed by the poll_video_uploads job.
func (h *CourseHandler) UploadVideo(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}
	var in services.VideoInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(in); err != nil {
		return response.ValidationError(c, err)
	}

	video, err := h.videos.Upload(c.UserContext(), id, in, handlers.FormFile(c, "video"))
	switch {
	case err == nil:
		return c.Status(fiber.StatusAccepted).JSON(response.Response{
			Success: true,
			Message: "Video uploaded, processing has started",
			Data:    video,
		})
	case errors.Is(err, storage.ErrInvalidUpload):
		return response.ValidationError(c, err)
	case errors.Is(err, services.ErrCourseNotFound):
		return response.NotFound(c, "Course not found")
	case errors.Is(err, services.ErrVideoHost):
		h.log.Error("video host rejected upload", "course_id", id, "error", err)
		return response.Error(c, fiber.StatusBadGateway, "Video host is unavailable", "VIDEO_HOST_ERROR")
	default:
		return response.Internal(c, h.log, "Failed to upload video", err)
	}
}

// GetVideoStatus handles GET /api/Admin/videos/:id/status
func (h *CourseHandler) GetVideoStatus(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid video ID")
	}
	view, err := h.videos.Status(c.UserContext(), id)
	if errors.Is(err, services.ErrVideoNotFound) {
		return response.NotFound(c, "Video not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to fetch video status", err)
	}
	return response.Success(c, view)
}

// DeleteVideo handles DELETE /api/Admin/videos/:id
func (h *CourseHandler) DeleteVideo(c *fiber.Ctx) error {
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid video ID")
	}
	err := h.videos.Delete(c.UserContext(), id)
	if errors.Is(err, services.ErrVideoNotFound) {
		return response.NotFound(c, "Video not found")
	}
	if err != nil {
		return response.Internal(c, h.log, "Failed to delete video", err)
	}
	return response.SuccessWithMessage(c, "Video deleted successfully", nil)
}

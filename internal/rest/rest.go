// Package rest implements the HTTP surface for meeting/attendee lifecycle
// and archived-transcript retrieval — everything outside the WebSocket
// translation plane.
package rest

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"lingobridge/internal/cache"
	"lingobridge/internal/livekit"
	"lingobridge/internal/model"
	"lingobridge/internal/registry"
	"lingobridge/internal/storage"
)

// Handler serves the REST surface. Any of tokens/transcripts/uploads may be
// nil, in which case the corresponding optional feature degrades rather
// than panicking (no LiveKit token in the response, transcripts read from
// Postgres only, upload endpoint returns 503).
type Handler struct {
	db          *gorm.DB
	tokens      *livekit.TokenIssuer
	transcripts *cache.TranscriptBuffer
	registry    *registry.Registry
	uploads     *storage.S3Service
}

// New builds a Handler. db must be non-nil; the other collaborators are
// optional.
func New(db *gorm.DB, tokens *livekit.TokenIssuer, transcripts *cache.TranscriptBuffer, reg *registry.Registry, uploads *storage.S3Service) *Handler {
	return &Handler{db: db, tokens: tokens, transcripts: transcripts, registry: reg, uploads: uploads}
}

// Register mounts every route on app under /api.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", h.health)
	api.Post("/meetings", h.createMeeting)
	api.Post("/meetings/:id/attendees", h.joinMeeting)
	api.Get("/meetings/:id/transcripts", h.transcriptsFor)
	api.Post("/meetings/:id/attendees/:attendeeId/upload-url", h.presignUpload)
}

func (h *Handler) health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	}
	if h.registry != nil {
		body["activeConnections"] = h.registry.ConnectionCount()
	}
	return c.JSON(body)
}

type createMeetingRequest struct {
	AttendeeName string `json:"attendeeName"`
}

type attendeeResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type meetingResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type joinResponse struct {
	Meeting      meetingResponse  `json:"meeting"`
	Attendee     attendeeResponse `json:"attendee"`
	LiveKitToken string           `json:"liveKitToken,omitempty"`
}

// createMeeting implements POST /api/meetings: creates a new two-party
// meeting with its first attendee.
func (h *Handler) createMeeting(c *fiber.Ctx) error {
	var req createMeetingRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.AttendeeName) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "attendeeName is required")
	}

	meeting := model.Meeting{Code: newMeetingCode()}
	attendee := model.Attendee{DisplayName: req.AttendeeName}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&meeting).Error; err != nil {
			return err
		}
		attendee.MeetingID = meeting.ID
		return tx.Create(&attendee).Error
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create meeting")
	}

	resp := joinResponse{
		Meeting:  meetingResponse{ID: meeting.ID.String(), Code: meeting.Code},
		Attendee: attendeeResponse{ID: attendee.ID.String(), DisplayName: attendee.DisplayName},
	}
	if h.tokens != nil {
		if tok, err := h.tokens.IssueJoinToken(meeting.Code, attendee.ID.String(), attendee.DisplayName); err == nil {
			resp.LiveKitToken = tok
		}
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

type joinMeetingRequest struct {
	AttendeeName string `json:"attendeeName"`
}

// joinMeeting implements POST /api/meetings/{id}/attendees: adds the second
// attendee to an existing meeting.
func (h *Handler) joinMeeting(c *fiber.Ctx) error {
	meetingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "meeting not found")
	}

	var req joinMeetingRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.AttendeeName) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "attendeeName is required")
	}

	var meeting model.Meeting
	if err := h.db.Preload("Attendees").First(&meeting, "id = ?", meetingID).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "meeting not found")
	}
	if meeting.EndedAt != nil {
		return fiber.NewError(fiber.StatusNotFound, "meeting has ended")
	}
	if len(meeting.Attendees) >= 2 {
		return fiber.NewError(fiber.StatusConflict, "meeting already has two participants")
	}

	attendee := model.Attendee{MeetingID: meeting.ID, DisplayName: req.AttendeeName}
	if err := h.db.Create(&attendee).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to join meeting")
	}

	resp := joinResponse{
		Meeting:  meetingResponse{ID: meeting.ID.String(), Code: meeting.Code},
		Attendee: attendeeResponse{ID: attendee.ID.String(), DisplayName: attendee.DisplayName},
	}
	if h.tokens != nil {
		if tok, err := h.tokens.IssueJoinToken(meeting.Code, attendee.ID.String(), attendee.DisplayName); err == nil {
			resp.LiveKitToken = tok
		}
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

type transcriptLine struct {
	SpeakerAttendeeID string `json:"speakerAttendeeId"`
	OriginalText      string `json:"originalText"`
	TranslatedText    string `json:"translatedText"`
	SourceLang        string `json:"sourceLang"`
	TargetLang        string `json:"targetLang"`
	At                string `json:"at"`
}

// transcriptsFor implements GET /api/meetings/{id}/transcripts: reads the
// still-buffered Redis entries for a live meeting, falling back to the
// Postgres-archived rows once the meeting has ended and its buffer has
// been flushed.
func (h *Handler) transcriptsFor(c *fiber.Ctx) error {
	meetingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "meeting not found")
	}

	if h.transcripts != nil {
		buffered, err := h.transcripts.GetTranscripts(c.Context(), meetingID.String())
		if err == nil && len(buffered) > 0 {
			lines := make([]transcriptLine, 0, len(buffered))
			for _, e := range buffered {
				lines = append(lines, transcriptLine{
					SpeakerAttendeeID: e.SpeakerAttendeeID,
					OriginalText:      e.OriginalText,
					TranslatedText:    e.TranslatedText,
					SourceLang:        e.SourceLang,
					TargetLang:        e.TargetLang,
					At:                e.At.Format(time.RFC3339),
				})
			}
			return c.JSON(fiber.Map{"transcripts": lines})
		}
	}

	var records []model.VoiceRecord
	if err := h.db.Where("meeting_id = ?", meetingID).Order("spoken_at asc").Find(&records).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load transcripts")
	}
	lines := make([]transcriptLine, 0, len(records))
	for _, r := range records {
		lines = append(lines, transcriptLine{
			SpeakerAttendeeID: r.AttendeeID.String(),
			OriginalText:      r.OriginalText,
			TranslatedText:    r.TranslatedText,
			SourceLang:        r.SourceLangCode,
			TargetLang:        r.TargetLangCode,
			At:                r.SpokenAt.Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"transcripts": lines})
}

func newMeetingCode() string {
	return strings.ToUpper(uuid.New().String()[:8])
}

type presignUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// presignUpload implements POST /api/meetings/{id}/attendees/{attendeeId}/
// upload-url: returns a presigned S3 PUT URL for an attendee avatar or
// meeting recording. The translation pipeline never calls this.
func (h *Handler) presignUpload(c *fiber.Ctx) error {
	if h.uploads == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "upload storage is not configured")
	}

	meetingID := c.Params("id")
	attendeeID := c.Params("attendeeId")

	var req presignUploadRequest
	if err := c.BodyParser(&req); err != nil || req.FileName == "" {
		return fiber.NewError(fiber.StatusBadRequest, "fileName is required")
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	presigned, err := h.uploads.GenerateUploadURL(meetingID, attendeeID, req.FileName, req.ContentType)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to presign upload")
	}
	return c.JSON(presigned)
}

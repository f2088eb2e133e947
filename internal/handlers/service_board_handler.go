package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yuehan04/pawconnect/backend/internal/apperrors"
	"github.com/yuehan04/pawconnect/backend/internal/builder"
	"github.com/yuehan04/pawconnect/backend/internal/events"
	"github.com/yuehan04/pawconnect/backend/internal/models"
	"github.com/yuehan04/pawconnect/backend/internal/repositories"
)

// ServiceBoardHandler handles HTTP requests for the pet service board.
type ServiceBoardHandler struct {
	serviceRepository repositories.ServiceRepository
	userRepository    repositories.UserRepository
	imageRepository   repositories.ImageRepository
	broadcaster       events.Broadcaster
}

// NewServiceBoardHandler creates a new ServiceBoardHandler.
func NewServiceBoardHandler(serviceRepo repositories.ServiceRepository, userRepo repositories.UserRepository, imageRepo repositories.ImageRepository, broadcaster events.Broadcaster) *ServiceBoardHandler {
	return &ServiceBoardHandler{
		serviceRepository: serviceRepo,
		userRepository:    userRepo,
		imageRepository:   imageRepo,
		broadcaster:       broadcaster,
	}
}

// RegisterServiceBoardRoutes registers the board routes. The optional guard
// middleware is applied to mutating routes only; reads stay open.
func (h *ServiceBoardHandler) RegisterServiceBoardRoutes(g *echo.Group, guard ...echo.MiddlewareFunc) {
	g.GET("/services", h.GetServices)
	g.GET("/services/reply/:id", h.GetReplies)
	g.GET("/services/images/:id", h.GetPetImage)

	g.POST("/services/request", h.CreateRequest, guard...)
	g.POST("/services/offer", h.CreateOffer, guard...)
	g.POST("/services/reply", h.PostReply, guard...)
	g.PUT("/services/match", h.ConfirmMatch, guard...)
	g.PUT("/services/:id/complete", h.CompleteService, guard...)
	g.PUT("/services/:id/cancel", h.CancelService, guard...)
	g.DELETE("/services/:id", h.DeleteService, guard...)
}

func boardError(err error) *echo.HTTPError {
	return echo.NewHTTPError(apperrors.HTTPStatus(err), err.Error())
}

// parseLocation assembles the optional location from the free-text place
// name and the lng/lat coordinate pair the client submits.
func parseLocation(placeName string, coordinates []string) (*models.Location, error) {
	if placeName == "" {
		return nil, nil
	}
	location := &models.Location{PlaceName: placeName}
	if len(coordinates) == 2 {
		lng, err := strconv.ParseFloat(coordinates[0], 64)
		if err != nil {
			return nil, apperrors.InvalidInput("malformed coordinates")
		}
		lat, err := strconv.ParseFloat(coordinates[1], 64)
		if err != nil {
			return nil, apperrors.InvalidInput("malformed coordinates")
		}
		location.Coordinates = &models.Coordinates{Lat: lat, Lng: lng}
	}
	return location, nil
}

// storePetImage saves an uploaded pet image, if any, and returns its blob
// reference. A missing file field is not an error; requests without images
// are common.
func (h *ServiceBoardHandler) storePetImage(c echo.Context) (string, error) {
	file, err := c.FormFile("petImage")
	if err != nil {
		return "", nil
	}
	src, err := file.Open()
	if err != nil {
		return "", apperrors.InvalidInput("unreadable pet image upload")
	}
	defer src.Close()
	return h.imageRepository.Put(file.Filename, src)
}

// GetServices lists every posting, newest first, with category and status
// decoded for client consumption. Postings with a malformed post_time sort
// to the top rather than failing the listing.
func (h *ServiceBoardHandler) GetServices(c echo.Context) error {
	postings, err := h.serviceRepository.GetAllServices(c.Request().Context())
	if err != nil {
		return boardError(err)
	}

	models.SortByPostTimeDesc(postings)
	views := make([]models.ServicePostingView, len(postings))
	for i, p := range postings {
		views[i] = models.NewServicePostingView(p)
	}
	return c.JSON(http.StatusOK, views)
}

// CreateRequest creates a service request posting from a multipart form.
func (h *ServiceBoardHandler) CreateRequest(c echo.Context) error {
	var req models.CreateServiceRequestInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByUserName(req.UserName)
	if err != nil {
		return boardError(err)
	}

	location, err := parseLocation(req.Location, req.Coordinates)
	if err != nil {
		return boardError(err)
	}

	imageRef, err := h.storePetImage(c)
	if err != nil {
		return boardError(err)
	}

	posting, err := builder.NewRequestBuilder().
		SetPoster(user).
		SetPetName(req.PetName).
		SetPetType(req.PetType).
		SetPetImage(imageRef).
		SetBreed(req.PetBreed).
		SetLocation(location).
		SetAvailability(&models.Availability{Start: req.AvailableStart, End: req.AvailableEnd}).
		SetCategory(req.ServiceCategory).
		SetNotes(req.Notes).
		SetPostTime(req.PostTime).
		Build()
	if err != nil {
		return boardError(err)
	}

	if err := h.serviceRepository.CreateService(c.Request().Context(), posting); err != nil {
		return boardError(err)
	}

	h.broadcaster.Publish(c.Request().Context(), events.ServiceCreated, map[string]string{"service_id": posting.ID.Hex()})

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":  "Request created successfully",
		"data": models.NewServicePostingView(*posting),
	})
}

// CreateOffer creates a service offer posting. Pet name, image and breed are
// not meaningful for offers and stay empty.
func (h *ServiceBoardHandler) CreateOffer(c echo.Context) error {
	var req models.CreateServiceOfferInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByUserName(req.UserName)
	if err != nil {
		return boardError(err)
	}

	location, err := parseLocation(req.Location, req.Coordinates)
	if err != nil {
		return boardError(err)
	}

	posting, err := builder.NewOfferBuilder().
		SetPoster(user).
		SetPetType(req.PetType).
		SetLocation(location).
		SetAvailability(&models.Availability{Start: req.AvailableStart, End: req.AvailableEnd}).
		SetCategory(req.ServiceCategory).
		SetNotes(req.Notes).
		SetPostTime(req.PostTime).
		Build()
	if err != nil {
		return boardError(err)
	}

	if err := h.serviceRepository.CreateService(c.Request().Context(), posting); err != nil {
		return boardError(err)
	}

	h.broadcaster.Publish(c.Request().Context(), events.ServiceCreated, map[string]string{"service_id": posting.ID.Hex()})

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":  "Offer created successfully",
		"data": models.NewServicePostingView(*posting),
	})
}

// DeleteService hard-deletes a posting together with its embedded replies.
func (h *ServiceBoardHandler) DeleteService(c echo.Context) error {
	serviceID := c.Param("id")
	if err := h.serviceRepository.DeleteService(c.Request().Context(), serviceID); err != nil {
		return boardError(err)
	}

	h.broadcaster.Publish(c.Request().Context(), events.ServiceDeleted, map[string]string{"service_id": serviceID})

	return c.JSON(http.StatusOK, echo.Map{"msg": "Service deleted successfully"})
}

// GetReplies returns the full reply structure of a posting, keyed by thread
// owner. A posting without replies yields an empty mapping.
func (h *ServiceBoardHandler) GetReplies(c echo.Context) error {
	posting, err := h.serviceRepository.GetServiceByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return boardError(err)
	}

	replies := posting.Replies
	if replies == nil {
		replies = map[string][]models.ReplyEntry{}
	}
	return c.JSON(http.StatusOK, replies)
}

// PostReply appends a reply to a posting. The thread owner defaults to the
// reply's author, which opens a new conversation lane.
func (h *ServiceBoardHandler) PostReply(c echo.Context) error {
	var req models.PostReplyInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	content := strings.TrimSpace(req.ReplyContent)
	if content == "" {
		return boardError(apperrors.InvalidInput("missing reply content"))
	}

	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	threadOwner := req.ThreadOwner
	if threadOwner == "" {
		threadOwner = req.UserName
	}

	entry := models.ReplyEntry{Author: req.UserName, Content: content, Timestamp: timestamp}
	if err := h.serviceRepository.AppendReply(c.Request().Context(), req.ServiceID, threadOwner, entry); err != nil {
		return boardError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"message": "Reply added successfully"})
}

// ConfirmMatch binds a counterparty to a pending posting and marks it
// matched. An already-matched or terminal posting is a conflict; the match
// is never silently overwritten.
func (h *ServiceBoardHandler) ConfirmMatch(c echo.Context) error {
	var req models.ConfirmMatchInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	matchedUser, err := h.userRepository.GetUserByUserName(req.MatchedUser)
	if err != nil {
		return boardError(err)
	}

	if err := h.serviceRepository.ConfirmMatch(c.Request().Context(), req.ServiceID, matchedUser.Snapshot()); err != nil {
		return boardError(err)
	}

	h.broadcaster.Publish(c.Request().Context(), events.ServiceMatched, map[string]string{
		"service_id":   req.ServiceID,
		"matched_user": req.MatchedUser,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "updated status successfully"})
}

// CompleteService moves a matched posting to completed.
func (h *ServiceBoardHandler) CompleteService(c echo.Context) error {
	serviceID := c.Param("id")
	if err := h.serviceRepository.CompleteService(c.Request().Context(), serviceID); err != nil {
		return boardError(err)
	}

	h.broadcaster.Publish(c.Request().Context(), events.ServiceUpdated, map[string]string{
		"service_id": serviceID,
		"status":     "completed",
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "service completed"})
}

// CancelService moves a pending or matched posting to canceled.
func (h *ServiceBoardHandler) CancelService(c echo.Context) error {
	serviceID := c.Param("id")
	if err := h.serviceRepository.CancelService(c.Request().Context(), serviceID); err != nil {
		return boardError(err)
	}

	h.broadcaster.Publish(c.Request().Context(), events.ServiceUpdated, map[string]string{
		"service_id": serviceID,
		"status":     "canceled",
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "service canceled"})
}

// GetPetImage streams a stored pet image. Postings without an image carry a
// blank or "none" reference; those answer 204 rather than 404.
func (h *ServiceBoardHandler) GetPetImage(c echo.Context) error {
	ref := c.Param("id")
	if strings.TrimSpace(ref) == "" || strings.EqualFold(ref, "none") {
		return c.NoContent(http.StatusNoContent)
	}

	data, err := h.imageRepository.Get(ref)
	if err != nil {
		return boardError(err)
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"karta/internal/app/commands"
	"karta/internal/app/dto"
	listingapp "karta/internal/app/handlers/listings"
	"karta/internal/app/queries"
	domainlistings "karta/internal/domain/listings"
)

// ListingHandler wires listing commands and queries to HTTP.
type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type listingRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	PriceCents    int64  `json:"price_cents"`
	ContactNumber string `json:"contact_number"`
	ContactEmail  string `json:"contact_email"`
	ImageURL      string `json:"image_url"`
}

func (r listingRequest) payload() listingapp.ListingPayload {
	return listingapp.ListingPayload{
		Title:         r.Title,
		Description:   r.Description,
		PriceCents:    r.PriceCents,
		ContactNumber: r.ContactNumber,
		ContactEmail:  r.ContactEmail,
		ImageURL:      r.ImageURL,
	}
}

// Catalog responds with a filtered snapshot of the board. Sync agents
// call this to initialize or recover their view.
func (h ListingHandler) Catalog(c *gin.Context) {
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "listing handler unavailable"})
		return
	}
	query := listingapp.SearchCatalogQuery{
		Title:         c.Query("title"),
		Owner:         c.Query("owner_id"),
		PriceMaxCents: parseInt64(c.Query("price_max_cents")),
		OnlyPublished: parseBool(c.Query("published")),
		Limit:         parseIntWithDefault(c.Query("limit"), 100),
		Offset:        parseInt(c.Query("offset")),
		Sort:          c.Query("sort"),
	}
	result, err := queries.Ask[listingapp.SearchCatalogQuery, dto.ListingCatalog](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Get(c *gin.Context) {
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "listing handler unavailable"})
		return
	}
	query := listingapp.GetListingQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[listingapp.GetListingQuery, *dto.Listing](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Create(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		h.respondWithError(c, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	cmd := listingapp.CreateListingCommand{
		ActorID:    p.ID,
		Payload:    req.payload(),
		RequestKey: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[listingapp.CreateListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/v1/listings/%s", result.ID))
	c.JSON(http.StatusCreated, result)
}

func (h ListingHandler) Update(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		h.respondWithError(c, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	cmd := listingapp.UpdateListingCommand{
		ActorID:   p.ID,
		ListingID: c.Param("id"),
		Payload:   req.payload(),
	}
	result, err := commands.Dispatch[listingapp.UpdateListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Delete(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		h.respondWithError(c, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	cmd := listingapp.DeleteListingCommand{
		ActorID:   p.ID,
		ListingID: c.Param("id"),
	}
	if _, err := commands.Dispatch[listingapp.DeleteListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ListingHandler) Publish(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		h.respondWithError(c, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	cmd := listingapp.PublishListingCommand{
		ActorID:   p.ID,
		ListingID: c.Param("id"),
	}
	result, err := commands.Dispatch[listingapp.PublishListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, listingapp.ErrNotOwner):
		h.respondWithError(c, http.StatusForbidden, err)
	case errors.Is(err, domainlistings.ErrNotFound):
		h.respondWithError(c, http.StatusNotFound, err)
	case errors.Is(err, domainlistings.ErrStoreUnavailable):
		h.respondWithError(c, http.StatusServiceUnavailable, err)
	case isValidationError(err):
		h.respondWithError(c, http.StatusBadRequest, err)
	default:
		h.respondWithError(c, http.StatusInternalServerError, err)
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrPriceNegative),
		errors.Is(err, domainlistings.ErrContactRequired),
		errors.Is(err, domainlistings.ErrEmailInvalid),
		errors.Is(err, listingapp.ErrActorRequired),
		errors.Is(err, listingapp.ErrListingRequired):
		return true
	}
	return false
}

func (h ListingHandler) respondWithError(c *gin.Context, status int, err error) {
	if h.Logger != nil && status >= http.StatusInternalServerError {
		fields := []any{"status", status, "error", err, "path", c.FullPath()}
		if p, ok := currentPrincipal(c); ok {
			fields = append(fields, "user_id", p.ID)
		}
		h.Logger.Error("listing request failed", fields...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

var _ ListingHTTP = ListingHandler{}

func parseInt(raw string) int {
	value, _ := strconv.Atoi(strings.TrimSpace(raw))
	if value < 0 {
		return 0
	}
	return value
}

func parseIntWithDefault(raw string, fallback int) int {
	value := parseInt(raw)
	if value == 0 {
		return fallback
	}
	return value
}

func parseBool(raw string) bool {
	value, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return value
}

func parseInt64(raw string) int64 {
	value, _ := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if value < 0 {
		return 0
	}
	return value
}

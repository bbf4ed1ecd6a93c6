package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/huangang/thesisdesk/internal/listing"
	"github.com/huangang/thesisdesk/internal/middleware"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
)

const (
	roleTag          = "role"
	adviseeStatusTag = "advisee_status"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator and makes
// field errors report JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation(roleTag, roleValidation)
		_ = v.RegisterValidation(adviseeStatusTag, adviseeStatusValidation)
	})
}

func roleValidation(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}

func adviseeStatusValidation(fl validator.FieldLevel) bool {
	return models.AdviseeStatus(fl.Field().String()).Valid()
}

// bindingMessage turns a binding error into one readable sentence.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body."
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return "Missing required fields: " + strings.Join(missing, ", ") + "."
	}
	return "Invalid value for " + strings.Join(invalid, ", ") + "."
}

// failBinding writes a 400 in the action result shape.
func failBinding(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.FailError[any](bindingMessage(err)))
}

// failAction maps an error returned next to an action result.
func failAction(c *gin.Context, err error) {
	switch {
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, response.FailError[any](err.Error()))
	case errors.Is(err, services.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, response.FailError[any]("not authorized"))
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("action failed")
		recordFailure(c, c.Request.Method+" "+c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, response.FailError[any]("Something went wrong."))
	}
}

// bindList reads page, pageSize, search, sortBy, sortDir and the JSON filters
// parameter. It writes a 400 and returns false on malformed input.
func bindList(c *gin.Context) (listing.Params, bool) {
	p := listing.NewParams()
	if err := c.ShouldBindQuery(&p); err != nil {
		response.BadRequest(c, "invalid list parameters")
		return p, false
	}
	filters, err := listing.ParseFilters(c.Query("filters"))
	if err != nil {
		response.BadRequest(c, "invalid filters: "+err.Error())
		return p, false
	}
	p.Filters = filters
	return p, true
}

// fetchFailed logs a store error behind a read endpoint and answers 500 with
// a generic message. The cause never reaches the client.
func fetchFailed(c *gin.Context, what string, err error) {
	logger.Error().Err(err).Str("path", c.FullPath()).Msgf("fetch %s failed", what)
	recordFailure(c, "fetch "+what, err)
	response.ServerError(c, "Failed to fetch "+what+".")
}

// recordFailure keeps an infrastructure failure in the system log.
func recordFailure(c *gin.Context, what string, err error) {
	var uid *string
	if id := middleware.GetUserID(c); id != "" {
		uid = &id
	}
	services.LogError("api", "error", what+" failed", uid, c.ClientIP(), c.Request.UserAgent(),
		map[string]string{"path": c.FullPath(), "error": err.Error()})
}

// actionStatus is the HTTP status of a failed action result: 404 for lookups
// that found nothing, 409 for rule violations and 500 for store failures.
func actionStatus[T any](r response.Result[T], notFound ...string) int {
	for _, msg := range notFound {
		if r.Error == msg || r.Message == msg {
			return http.StatusNotFound
		}
	}
	if strings.HasPrefix(r.Error, "Failed to") || strings.HasPrefix(r.Message, "Failed to") {
		return http.StatusInternalServerError
	}
	return http.StatusConflict
}

// writeAction answers with the result, okStatus on success.
func writeAction[T any](c *gin.Context, r response.Result[T], okStatus int, notFound ...string) {
	response.Action(c, r, okStatus, actionStatus(r, notFound...))
}

package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"lims/library"
)

// fail writes err as an error body with the status of its kind. Errors of no
// known kind are logged and answered with a generic 500.
func fail(c *gin.Context, err error) {
	var verr *library.ValidationError
	if errors.As(err, &verr) {
		problems(c, http.StatusBadRequest, verr.Problems)
		return
	}

	switch library.Kind(err) {
	case library.ErrInvalidArgument:
		message(c, http.StatusBadRequest, err.Error())
	case library.ErrNotFound:
		message(c, http.StatusNotFound, err.Error())
	case library.ErrDuplicateKey, library.ErrInvalidState:
		message(c, http.StatusConflict, err.Error())
	default:
		log.Printf("api: %s %s id=%s: %v", c.Request.Method, c.Request.URL.Path, c.GetString("requestID"), err)
		message(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

func message(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"Error": msg})
}

// problems uses the single form when there is only one message.
func problems(c *gin.Context, status int, msgs []string) {
	if len(msgs) == 1 {
		message(c, status, msgs[0])
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"Errors": msgs})
}

// bindFailed answers a request body that could not be decoded or failed its
// binding rules.
func bindFailed(c *gin.Context, err error, fieldMessages map[string]string) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		message(c, http.StatusBadRequest, "Invalid request data.")
		return
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if m, ok := fieldMessages[fe.Field()]; ok {
			msgs = append(msgs, m)
			continue
		}
		msgs = append(msgs, fe.Field()+" is not valid.")
	}
	problems(c, http.StatusBadRequest, msgs)
}

// pathID parses the :id segment. ok is false when a response was already written.
func pathID(c *gin.Context, entity string) (id int64, ok bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		message(c, http.StatusBadRequest, "Invalid "+entity+" ID.")
		return 0, false
	}
	return id, true
}

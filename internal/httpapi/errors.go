package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"artwink/internal/roster"
	"artwink/internal/studio"
)

// respondError writes err as {"error": message} with its status.
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		verr  *studio.ValidationError
		aerr  *studio.AuthError
		ioerr *studio.IOError
		lerr  roster.LoadErrors
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.As(err, &aerr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": aerr.Message, "code": aerr.Code})
	case errors.Is(err, studio.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this record."})
	case errors.Is(err, studio.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &lerr):
		s.Log.Error("dataset load failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load data.", "errors": loadErrorMessages(lerr)})
	case errors.As(err, &ioerr):
		s.Log.Error("storage failure", zap.String("op", ioerr.Op), zap.Error(ioerr.Err))
		c.JSON(http.StatusBadGateway, gin.H{"error": ioerr.Error()})
	default:
		s.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred. Please try again later."})
	}
}

func loadErrorMessages(le roster.LoadErrors) map[string]string {
	out := make(map[string]string, len(le))
	for k, err := range le {
		out[k] = err.Error()
	}
	return out
}

var queryMessages = map[string]string{
	"Date":      "Date must be formatted YYYY-MM-DD",
	"ClassName": "Class must be one of: " + studio.ClassTraditional + ", " + studio.ClassDigital,
}

// bindErr turns a gin binding failure into a ValidationError.
func bindErr(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if msg, ok := queryMessages[fe.StructField()]; ok {
			return studio.Invalid(fe.Field(), msg)
		}
		return studio.Invalid(fe.Field(), fe.Field()+" is invalid")
	}
	return studio.Invalid("body", "Malformed request")
}

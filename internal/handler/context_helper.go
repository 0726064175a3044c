package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadhub/thesis-supervision-api/internal/middleware"
	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

func principalFromContext(c *gin.Context) models.Principal {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(models.Principal)
	if !ok {
		return nil
	}
	return principal
}

// uploadFromForm extracts the "file" multipart field as a FileUpload. The
// returned closer must be deferred by the caller.
func uploadFromForm(c *gin.Context) (models.FileUpload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return models.FileUpload{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field required")
	}

	opened, err := header.Open()
	if err != nil {
		return models.FileUpload{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded file")
	}

	upload := models.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      opened,
	}
	return upload, func() { _ = opened.Close() }, nil
}

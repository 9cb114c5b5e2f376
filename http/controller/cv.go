package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/resumelab/cv-optimizer/utils"
)

// ListCVs returns the caller's uploaded CV documents.
func (ctrl *Controller) ListCVs(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	cvs, err := ctrl.CVs.ListByOwner(ctx, userID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[CV] Failed to list CVs for user %s", userID)
		utils.JSON400(c, "Failed to list CVs")
		return
	}

	items := make([]gin.H, 0, len(cvs))
	for _, cv := range cvs {
		items = append(items, gin.H{
			"cv_id":        cv.ID.String(),
			"file_name":    cv.FileName,
			"content_type": cv.ContentType,
			"size_bytes":   cv.SizeBytes,
			"created_at":   cv.CreatedAt,
		})
	}

	utils.JSON200(c, gin.H{
		"success": true,
		"cvs":     items,
	})
}

package dto

type CreateJobRequest struct {
	CVID           string `json:"cv_id" binding:"required"`
	Type           string `json:"type"`
	JobDescription string `json:"job_description"`
	JobCount       int    `json:"job_count"`
}

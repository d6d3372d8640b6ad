package models

type CreateSessionRequest struct {
	// Flow is "wizard" (default) or "quick".
	Flow string `json:"flow,omitempty" example:"wizard"`
}

type SelectStyleRequest struct {
	StyleID string `json:"style_id" binding:"required" example:"hollywood"`
}

type SelectShadeRequest struct {
	ShadeID string `json:"shade_id" binding:"required" example:"bl1"`
}

type LeadRequest struct {
	Name        string `json:"name" example:"Jane Doe"`
	Phone       string `json:"phone" example:"555-123-4567"`
	CountryCode string `json:"country_code,omitempty" example:"+1"`
	Email       string `json:"email" example:"jane@example.com"`
	// FreeTreatment only applies to the quick flow, where it defaults to true.
	FreeTreatment *bool `json:"free_treatment,omitempty"`
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Fields carries per-field validation messages.
	Fields map[string]string `json:"fields,omitempty"`
}

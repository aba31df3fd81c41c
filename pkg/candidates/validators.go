package candidates

type CreateCandidatePayload struct {
	BookID     int     `json:"book_id" validate:"required"`
	SourceID   int     `json:"source_id" validate:"required"`
	Field      string  `json:"field" validate:"required,oneof=title author series cover publisher language identifier year description"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

type UpdateCandidatePayload struct {
	Active *bool `json:"active" validate:"required"`
}

package books

type CreateBookPayload struct {
	Filepath string  `json:"filepath" validate:"required"`
	Title    string  `json:"title"`
	ISBN     *string `json:"isbn,omitempty"`
}

type ListBooksQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=500"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type UpdateReviewedPayload struct {
	Reviewed *bool `json:"reviewed" validate:"required"`
}

package scansessions

type ListSessionsQuery struct {
	Resumable bool `query:"resumable" json:"resumable,omitempty"`
	Active    bool `query:"active" json:"active,omitempty"`
	Limit     int  `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=100"`
}

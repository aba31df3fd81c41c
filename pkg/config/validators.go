package config

type UpdateConfigPayload struct {
	Sources []UpdateSourceConfigPayload `json:"sources,omitempty" validate:"omitempty,dive"`
}

type UpdateSourceConfigPayload struct {
	Name                    string   `json:"name" validate:"required"`
	TrustLevel              *float64 `json:"trust_level,omitempty" validate:"omitempty,gte=0,lte=1"`
	RequestsPerDay          *int     `json:"requests_per_day,omitempty" validate:"omitempty,min=0"`
	RequestsPerHour         *int     `json:"requests_per_hour,omitempty" validate:"omitempty,min=0"`
	RequestsPerMinute       *int     `json:"requests_per_minute,omitempty" validate:"omitempty,min=0"`
	MinIntervalMS           *int     `json:"min_interval_ms,omitempty" validate:"omitempty,min=0"`
	BreakerFailureThreshold *int     `json:"breaker_failure_threshold,omitempty" validate:"omitempty,min=1"`
	BreakerCooldownSeconds  *int     `json:"breaker_cooldown_seconds,omitempty" validate:"omitempty,min=1"`
	CacheTTLSeconds         *int     `json:"cache_ttl_seconds,omitempty" validate:"omitempty,min=0"`
	Disabled                *bool    `json:"disabled,omitempty"`
}

package config

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/pkg/errors"
)

type handler struct {
	configService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	userConfig, err := h.configService.RetrieveUserConfig()
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, userConfig))
}

func (h *handler) update(c echo.Context) error {
	params := UpdateConfigPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userConfig, err := h.configService.RetrieveUserConfig()
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateUserConfigOptions{}

	for _, update := range params.Sources {
		sc := userConfig.SourceByName(update.Name)
		if sc == nil {
			return errcodes.NotFound("Source")
		}

		if update.TrustLevel != nil && sc.TrustLevel != *update.TrustLevel {
			sc.TrustLevel = *update.TrustLevel
			opts.UpdateFile = true
		}
		if update.RequestsPerDay != nil && sc.RequestsPerDay != *update.RequestsPerDay {
			sc.RequestsPerDay = *update.RequestsPerDay
			opts.UpdateFile = true
		}
		if update.RequestsPerHour != nil && sc.RequestsPerHour != *update.RequestsPerHour {
			sc.RequestsPerHour = *update.RequestsPerHour
			opts.UpdateFile = true
		}
		if update.RequestsPerMinute != nil && sc.RequestsPerMinute != *update.RequestsPerMinute {
			sc.RequestsPerMinute = *update.RequestsPerMinute
			opts.UpdateFile = true
		}
		if update.MinIntervalMS != nil && sc.MinIntervalMS != *update.MinIntervalMS {
			sc.MinIntervalMS = *update.MinIntervalMS
			opts.UpdateFile = true
		}
		if update.BreakerFailureThreshold != nil && sc.BreakerFailureThreshold != *update.BreakerFailureThreshold {
			sc.BreakerFailureThreshold = *update.BreakerFailureThreshold
			opts.UpdateFile = true
		}
		if update.BreakerCooldownSeconds != nil && sc.BreakerCooldownSeconds != *update.BreakerCooldownSeconds {
			sc.BreakerCooldownSeconds = *update.BreakerCooldownSeconds
			opts.UpdateFile = true
		}
		if update.CacheTTLSeconds != nil && sc.CacheTTLSeconds != *update.CacheTTLSeconds {
			sc.CacheTTLSeconds = *update.CacheTTLSeconds
			opts.UpdateFile = true
		}
		if update.Disabled != nil && sc.Disabled != *update.Disabled {
			sc.Disabled = *update.Disabled
			opts.UpdateFile = true
		}
	}

	if err := h.configService.UpdateUserConfig(userConfig, opts); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, userConfig))
}

package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate ensures the configuration is usable. Credentials are checked per
// stage by RequireYouTube and RequireSpotify so offline stages run without them.
func (c *Config) Validate() error {
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateAcquire(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if c.YouTube.PageSize < 1 || c.YouTube.PageSize > maxYouTubePageSize {
		return fmt.Errorf("youtube.page_size must be between 1 and %d", maxYouTubePageSize)
	}
	return nil
}

func (c *Config) validateAcquire() error {
	if _, err := time.Parse(time.RFC3339, c.Acquire.StartDate); err != nil {
		return fmt.Errorf("acquire.start_date must be RFC 3339 (e.g. 2010-03-08T00:00:00Z): %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
}

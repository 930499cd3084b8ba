package config

import (
	"fmt"
)

// Validate checks configuration values. Returns sentinel errors usable
// with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Mock mode runs entirely offline; the API key is only required when
	// real model calls can happen.
	if !c.Mock && c.APIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or enable mock mode\n"+
			"Get an API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if _, ok := c.Steps["default"]; !ok {
		return fmt.Errorf("%w: steps.default entry is required", ErrInvalidModelSettings)
	}
	for step, st := range c.Steps {
		if st.Model == "" {
			return fmt.Errorf("%w: steps.%s.model cannot be empty", ErrInvalidModelSettings, step)
		}
		if st.Temperature < 0 || st.Temperature > 2 {
			return fmt.Errorf("%w: steps.%s.temperature must be between 0.0 and 2.0, got %.2f",
				ErrInvalidModelSettings, step, st.Temperature)
		}
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return fmt.Errorf("%w: max_attempts must be between 1 and 10, got %d",
			ErrInvalidRetry, c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelayMS < 1 || c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return fmt.Errorf("%w: delays must satisfy 1 <= base_delay_ms <= max_delay_ms",
			ErrInvalidRetry)
	}
	if c.Retry.ExponentialBase < 1 {
		return fmt.Errorf("%w: exponential_base must be >= 1, got %.2f",
			ErrInvalidRetry, c.Retry.ExponentialBase)
	}

	if c.Pipeline.ImageWorkers < 1 || c.Pipeline.ImageWorkers > 16 {
		return fmt.Errorf("%w: image_workers must be between 1 and 16, got %d",
			ErrInvalidPipeline, c.Pipeline.ImageWorkers)
	}
	if c.Pipeline.MaxIterations < 0 || c.Pipeline.MaxIterations > 10 {
		return fmt.Errorf("%w: max_iterations must be between 0 and 10, got %d",
			ErrInvalidPipeline, c.Pipeline.MaxIterations)
	}
	if c.Pipeline.MaxEdits < 1 {
		return fmt.Errorf("%w: max_edits must be >= 1, got %d",
			ErrInvalidPipeline, c.Pipeline.MaxEdits)
	}
	if c.Pipeline.MaxDelta <= 0 || c.Pipeline.MaxDelta > 1 {
		return fmt.Errorf("%w: max_delta must be in (0, 1], got %.3f",
			ErrInvalidPipeline, c.Pipeline.MaxDelta)
	}

	if c.BlobDir == "" {
		return fmt.Errorf("%w: blob_dir cannot be empty", ErrInvalidStorage)
	}
	if c.BlobBaseURL == "" {
		return fmt.Errorf("%w: blob_base_url cannot be empty", ErrInvalidStorage)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	return nil
}

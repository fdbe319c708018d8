package pinecone

import (
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/docqa/core"
)

// Config identifies a managed Pinecone index.
type Config struct {
	APIKey      string        `yaml:"api_key"`
	Environment string        `yaml:"environment"`
	IndexName   string        `yaml:"index"`
	Namespace   string        `yaml:"namespace"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Validate reports every missing field at once, wrapped in core.ErrConfiguration.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("api key is required (PINECONE_API_KEY)"))
	}
	if c.Environment == "" {
		errs = append(errs, errors.New("environment is required (PINECONE_ENVIRONMENT)"))
	}
	if c.IndexName == "" {
		errs = append(errs, errors.New("index name is required (PINECONE_INDEX)"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout cannot be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: pinecone: %w", core.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

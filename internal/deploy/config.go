// Package deploy loads the externally authored deployment configuration and
// answers (repository, tag) lookups against it.
package deploy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aira-technology/tag-scanner/internal/model"
)

// Config maps repository name to its deployment records.
type Config map[string]Repository

// Repository describes one repository's deployed versions.
type Repository struct {
	DeployedVersions map[string]Version `json:"deployed_versions"`
	RepositoryType   string             `json:"repository_type,omitempty"`
	Team             string             `json:"team,omitempty"`
}

// Version is the deployment record for one tag of one repository.
type Version struct {
	Status        string `json:"status"`
	Environment   string `json:"environment"`
	DeployedAt    string `json:"deployed_at,omitempty"`
	DeploymentURL string `json:"deployment_url,omitempty"`
}

// Load reads and validates a deployment configuration file. A missing file is
// not an error; it yields a nil Config (all lookups report unknown).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read deployment config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &model.ValidationError{Path: path, Reason: "not a valid deployment config: " + err.Error()}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for repo, r := range c {
		for tag, v := range r.DeployedVersions {
			if v.Status == "" {
				return &model.ValidationError{
					Path:   fmt.Sprintf("%s.deployed_versions.%s.status", repo, tag),
					Reason: "missing",
				}
			}
			if v.Environment == "" {
				return &model.ValidationError{
					Path:   fmt.Sprintf("%s.deployed_versions.%s.environment", repo, tag),
					Reason: "missing",
				}
			}
		}
	}
	return nil
}

// Lookup resolves the deployment record for (repository, tag).
//
// Three outcomes, mirrored in the returned Version:
//   - the tag is deployed: its configured record;
//   - the repository is known but the tag is not deployed:
//     status "not_deployed", environment "none";
//   - the repository is unknown: status and environment "unknown".
func (c Config) Lookup(repository, tag string) Version {
	r, ok := c[repository]
	if !ok {
		return Version{Status: model.StatusUnknown, Environment: model.EnvironmentUnknown}
	}
	if v, ok := r.DeployedVersions[tag]; ok {
		return v
	}
	return Version{Status: model.StatusNotDeployed, Environment: model.EnvironmentNone}
}

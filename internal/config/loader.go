package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the name of the configuration file searched for in
// the current directory and the user's home directory.
const DefaultConfigFile = ".sitesnap.yaml"

// LoadConfigFile reads and parses a YAML configuration file.
// It returns ErrConfigNotFound if the file does not exist, which callers
// can detect with errors.Is to fall back to defaults.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.Sites == nil {
		file.Sites = map[string]SiteConfig{}
	}

	return &file, nil
}

// FindConfigFile locates the configuration file to use.
// Search order:
//  1. The explicit path, if provided (an error if it does not exist)
//  2. .sitesnap.yaml in the current directory
//  3. .sitesnap.yaml in the user's home directory
//
// It returns an empty string with no error when no config file exists and
// none was explicitly requested.
func FindConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
			}
			return "", fmt.Errorf("failed to stat config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// No home directory is not an error here; it just means there is
		// no user-level config to find.
		return "", nil
	}
	homeConfig := filepath.Join(home, DefaultConfigFile)
	if _, err := os.Stat(homeConfig); err == nil {
		return homeConfig, nil
	}

	return "", nil
}

// LoadEnvFile loads environment variables from a dotenv file so that
// credential resolution can see them. When explicit is false a missing file
// is ignored; an explicitly requested file must exist.
//
// Design decision: Credentials live in the environment rather than in the
// YAML config so that config files can be committed without leaking secrets.
// The dotenv file is a convenience for local use.
func LoadEnvFile(path string, explicit bool) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ResolveCredentials fills Username and Password from the environment when
// they were not supplied directly. It must run after LoadEnvFile so dotenv
// values are visible. Missing variables leave the fields empty; Validate
// reports that as ErrNoCredentials.
func (c *Config) ResolveCredentials() {
	if c.Username == "" && c.UsernameEnv != "" {
		c.Username = os.Getenv(c.UsernameEnv)
	}
	if c.Password == "" && c.PasswordEnv != "" {
		c.Password = os.Getenv(c.PasswordEnv)
	}
}

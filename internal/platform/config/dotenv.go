package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DotEnvPathVar names the variable that overrides the dotenv file location.
const DotEnvPathVar = "SITELEDGER_DOTENV"

const defaultDotEnvPath = ".env"

// LoadDotEnv loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already present in the environment win. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(DotEnvPathVar))
	}
	if path == "" {
		path = defaultDotEnvPath
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv %s: %w", path, err)
	}
	return nil
}

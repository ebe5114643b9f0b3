// Package dotenv loads .env files into the process environment.
package dotenv

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// LoadFiles loads each existing file in order. Variables already present in
// the environment win, and so do values from earlier files. Missing files
// are skipped.
func LoadFiles(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return loaded, errors.Wrapf(err, "stat env file %q", path)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, errors.Wrapf(err, "load env file %q", path)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

package config

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv copies files (default .env) into the process environment.
// Variables already set win. Missing files are not an error.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Println(".env not found, using system environment")
			return
		}
		log.Printf("load .env: %v", err)
	}
}

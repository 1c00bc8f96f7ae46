package config

import "github.com/joho/godotenv"

// LoadEnv loads variables from a .env file in the working directory. A
// missing file is reported as an os.IsNotExist error so callers can ignore it.
func LoadEnv() error {
	return godotenv.Load()
}

package internal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ReadPasswordFile returns the first line of filename with surrounding
// whitespace removed.
func ReadPasswordFile(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("password file %s is empty", filename)
	}
	pwd := strings.TrimSpace(scanner.Text())
	if pwd == "" {
		return "", fmt.Errorf("password file %s is empty", filename)
	}
	return pwd, nil
}

// ResolvePassword picks the export password from a flag value or a password
// file. Giving both is an error.
func ResolvePassword(password, passwordFile string) (string, error) {
	if password != "" && passwordFile != "" {
		return "", errors.New("use either a password or a password file, not both")
	}
	if passwordFile != "" {
		pwd, err := ReadPasswordFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("loading password from file: %w", err)
		}
		return pwd, nil
	}
	return password, nil
}

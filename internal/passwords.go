package internal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sensiblebit/sslchains"
)

// LoadPasswordsFromFile loads passwords from a file, one password per line.
// Surrounding whitespace is trimmed and blank lines are ignored.
func LoadPasswordsFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var passwords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			passwords = append(passwords, pwd)
		}
	}
	return passwords, scanner.Err()
}

// ProcessPasswords returns the built-in defaults followed by passwordList and
// the contents of passwordFile, with duplicates removed.
func ProcessPasswords(passwordList []string, passwordFile string) ([]string, error) {
	extra := append([]string(nil), passwordList...)
	if passwordFile != "" {
		filePasswords, err := LoadPasswordsFromFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("loading passwords from file: %w", err)
		}
		extra = append(extra, filePasswords...)
	}
	return sslchains.DeduplicatePasswords(extra), nil
}

package database

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// SeedBlockedTerms downloads a newline-separated word list and stores it in
// blocked_terms. It does nothing when the table is already populated and
// returns the number of terms added.
func (db *DB) SeedBlockedTerms(url string) (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM blocked_terms").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to check blocked terms count: %w", err)
	}
	if count > 0 || url == "" {
		return 0, nil
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to download blocked terms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status code from blocked terms URL: %d", resp.StatusCode)
	}

	terms := make(map[string]struct{})
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		term := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if term == "" || strings.ContainsFunc(term, unicode.IsSpace) {
			continue
		}
		terms[term] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading blocked terms: %w", err)
	}

	err = db.WithTx(func(tx *Tx) error {
		for term := range terms {
			if _, err := tx.Exec("INSERT INTO blocked_terms (term) VALUES (?)", term); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store blocked terms: %w", err)
	}
	return len(terms), nil
}

// AddBlockedTerm inserts a single term, ignoring duplicates.
func (db *DB) AddBlockedTerm(term string) error {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" {
		return nil
	}
	_, err := db.Exec("INSERT INTO blocked_terms (term) VALUES (?)", term)
	if err != nil && !db.Dialect.IsUniqueViolation(err) {
		return fmt.Errorf("failed to add blocked term: %w", err)
	}
	return nil
}

// FindBlockedTerms returns the distinct words of text that are blocked.
func (db *DB) FindBlockedTerms(text string) ([]string, error) {
	words := tokenize(text)
	if len(words) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(words)), ",")
	args := make([]interface{}, len(words))
	for i, w := range words {
		args[i] = w
	}

	rows, err := db.Query("SELECT term FROM blocked_terms WHERE term IN ("+placeholders+") ORDER BY term", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check blocked terms: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		found = append(found, term)
	}
	return found, rows.Err()
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var words []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			words = append(words, f)
		}
	}
	return words
}

// Package roomid creates memorable room ids and extracts ids from room
// links.
package roomid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
)

// wordsPerID is how many words a generated id has.
const wordsPerID = 3

var (
	ErrEmpty   = errors.New("room ID cannot be empty")
	ErrInvalid = errors.New("invalid room ID")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Generate returns a random id such as "calm-otter-harbor", drawing each
// word from a different list.
func Generate() (string, error) {
	pool := [][]string{creatures, sounds, places, moods, colors}

	lists, err := pick(len(pool), wordsPerID)
	if err != nil {
		return "", err
	}

	words := make([]string, 0, wordsPerID)
	for _, i := range lists {
		n, err := randomIndex(len(pool[i]))
		if err != nil {
			return "", err
		}
		words = append(words, pool[i][n])
	}
	return strings.Join(words, "-"), nil
}

// pick returns k distinct indices below n in random order.
func pick(n, k int) ([]int, error) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j, err := randomIndex(n - i)
		if err != nil {
			return nil, err
		}
		idx[i], idx[i+j] = idx[i+j], idx[i]
	}
	return idx[:k], nil
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating room ID: %w", err)
	}
	return int(n.Int64()), nil
}

// Parse accepts a bare room id or a room link such as
// https://warpcall.qzz.io/r/calm-otter-harbor and returns the id.
func Parse(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmpty
	}

	id := input
	if strings.Contains(input, "://") || strings.Contains(input, "/") {
		var err error
		if id, err = fromURL(input); err != nil {
			return "", err
		}
	}

	if !validID.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, id)
	}
	return id, nil
}

func fromURL(input string) (string, error) {
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	parts := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: no room in link %s", ErrInvalid, input)
}

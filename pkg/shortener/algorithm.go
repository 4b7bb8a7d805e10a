package shortener

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/rajweepmondal/url-shortener/internal/models"
)

const (
	// Base62 alphabet (0-9, a-z, A-Z) - URL safe characters
	base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	defaultLength  = 7
	minLength      = 4
	maxLength      = 10

	aliasMinLength = 3
	aliasMaxLength = 50
)

var defaultReservedWords = []string{
	"api", "admin", "www", "mail", "ftp", "localhost",
	"stats", "analytics", "dashboard", "health", "metrics",
	"docs", "swagger", "graphql", "webhook", "webhooks", "callback",
	"login", "logout", "register", "signup", "signin", "settings", "profile", "account",
}

// CodeExistenceChecker is the narrow collision-check dependency the
// allocator needs from the repository; it deliberately knows nothing else
// about persistence.
type CodeExistenceChecker interface {
	ExistsByCode(ctx context.Context, shortCode string) (bool, error)
}

// Shortener mints short codes and validates custom aliases. It holds no
// durable state of its own; collision checking is delegated to a
// CodeExistenceChecker.
type Shortener struct {
	length        int
	maxAttempts   int
	checker       CodeExistenceChecker
	reservedWords map[string]bool
}

// New creates a new Shortener instance.
func New(length int, maxAttempts int, checker CodeExistenceChecker, extraReserved map[string]bool) *Shortener {
	if length < minLength || length > maxLength {
		length = defaultLength
	}
	if maxAttempts < 1 {
		maxAttempts = 8
	}

	reserved := make(map[string]bool, len(defaultReservedWords)+len(extraReserved))
	for _, w := range defaultReservedWords {
		reserved[w] = true
	}
	for w := range extraReserved {
		reserved[strings.ToLower(w)] = true
	}

	return &Shortener{
		length:        length,
		maxAttempts:   maxAttempts,
		checker:       checker,
		reservedWords: reserved,
	}
}

// generateShortCode draws a single candidate code uniformly from the base62
// alphabet using crypto/rand. No hash-of-input or counter-based determinism
// feeds code generation.
func (s *Shortener) generateShortCode() (string, error) {
	result := make([]byte, s.length)
	alphabetLen := big.NewInt(int64(len(base62Alphabet)))

	for i := range result {
		randomIndex, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = base62Alphabet[randomIndex.Int64()]
	}

	return string(result), nil
}

// Generate mints a unique short code, retrying on collision up to
// maxAttempts times. Collisions are expected to be exceedingly rare at this
// alphabet size and length; repeated collisions indicate either a
// near-exhausted namespace or a degenerate RNG, so exhaustion is reported as
// a distinct error rather than retried forever.
func (s *Shortener) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.generateShortCode()
		if err != nil {
			return "", fmt.Errorf("short code generation failed: %w", err)
		}

		exists, err := s.checker.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", models.ErrGenerationExhausted()
}

// IsValidShortCode validates if a short code is in the allocator's alphabet
// and length bounds.
func IsValidShortCode(shortCode string) bool {
	if len(shortCode) < minLength || len(shortCode) > maxLength {
		return false
	}

	for _, char := range shortCode {
		if !strings.ContainsRune(base62Alphabet, char) {
			return false
		}
	}

	return true
}

// IsReserved reports whether s is a reserved word, case-insensitively.
func (s *Shortener) IsReserved(alias string) bool {
	return s.reservedWords[strings.ToLower(alias)]
}

// Normalize lowercases and validates a user-supplied alias, returning an
// InvalidAlias *models.AppError whose Details carry the AliasReason of the
// first violation found.
func (s *Shortener) Normalize(userInput string) (string, *models.AppError) {
	normalized := strings.ToLower(strings.TrimSpace(userInput))

	if len(normalized) < aliasMinLength {
		return "", models.ErrInvalidAlias(models.AliasReasonTooShort)
	}
	if len(normalized) > aliasMaxLength {
		return "", models.ErrInvalidAlias(models.AliasReasonTooLong)
	}

	for _, char := range normalized {
		if !((char >= '0' && char <= '9') ||
			(char >= 'a' && char <= 'z') ||
			char == '-' || char == '_') {
			return "", models.ErrInvalidAlias(models.AliasReasonBadChars)
		}
	}

	if s.IsReserved(normalized) {
		return "", models.ErrInvalidAlias(models.AliasReasonReserved)
	}

	return normalized, nil
}

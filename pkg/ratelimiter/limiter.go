package ratelimiter

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

// Strategy defines the rate limiting strategy
type Strategy string

const (
	StrategyFixedWindow   Strategy = "fixed_window"
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyTokenBucket   Strategy = "token_bucket"
)

// Config holds rate limiter configuration
type Config struct {
	Strategy     Strategy
	Limit        int
	Window       time.Duration
	Capacity     int // For token bucket
	RefillRate   int // For token bucket
}

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	repo   interfaces.RateLimitRepository
	config Config
}

// New creates a new rate limiter
func New(repo interfaces.RateLimitRepository, config Config) *RateLimiter {
	return &RateLimiter{
		repo:   repo,
		config: config,
	}
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	switch rl.config.Strategy {
	case StrategyFixedWindow:
		return rl.allowFixedWindow(ctx, key)
	case StrategySlidingWindow:
		return rl.allowSlidingWindow(ctx, key)
	case StrategyTokenBucket:
		return rl.allowTokenBucket(ctx, key)
	default:
		return rl.allowSlidingWindow(ctx, key) // Default to sliding window
	}
}

// allowFixedWindow implements fixed window rate limiting
func (rl *RateLimiter) allowFixedWindow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := rl.repo.CheckFixedWindow(ctx, key, rl.config.Limit, rl.config.Window)
	if err != nil {
		return false, fmt.Errorf("failed to check fixed window rate limit: %w", err)
	}
	return allowed, nil
}

// allowSlidingWindow implements sliding window rate limiting
func (rl *RateLimiter) allowSlidingWindow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := rl.repo.CheckRateLimit(ctx, key, rl.config.Limit, rl.config.Window)
	if err != nil {
		return false, fmt.Errorf("failed to check sliding window rate limit: %w", err)
	}
	
	return allowed, nil
}

// allowTokenBucket implements token bucket rate limiting
func (rl *RateLimiter) allowTokenBucket(ctx context.Context, key string) (bool, error) {
	capacity := rl.config.Capacity
	if capacity <= 0 {
		capacity = rl.config.Limit
	}
	refillRate := rl.config.RefillRate
	if refillRate <= 0 {
		refillRate = rl.config.Limit
	}

	allowed, err := rl.repo.CheckTokenBucket(ctx, key, capacity, refillRate, rl.config.Window)
	if err != nil {
		return false, fmt.Errorf("failed to check token bucket rate limit: %w", err)
	}
	return allowed, nil
}

// GetInfo returns current rate limit information
func (rl *RateLimiter) GetInfo(ctx context.Context, key string) (*Info, error) {
	count, ttl, err := rl.repo.GetRateLimitInfo(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit info: %w", err)
	}
	
	return &Info{
		Key:       key,
		Count:     count,
		Limit:     rl.config.Limit,
		Remaining: max(0, rl.config.Limit-count),
		ResetTime: time.Now().Add(ttl),
		Window:    rl.config.Window,
	}, nil
}

// Reset resets the rate limit for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.repo.ResetRateLimit(ctx, key)
}

// Info contains rate limit information
type Info struct {
	Key       string        `json:"key"`
	Count     int           `json:"count"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetTime time.Time     `json:"reset_time"`
	Window    time.Duration `json:"window"`
}

// KeyGenerator provides methods to generate rate limit keys
type KeyGenerator struct{}

// NewKeyGenerator creates a new key generator
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// IPKey generates a key based on IP address
func (kg *KeyGenerator) IPKey(ip string) string {
	// Normalize IP address
	if parsedIP := net.ParseIP(ip); parsedIP != nil {
		if ipv4 := parsedIP.To4(); ipv4 != nil {
			return fmt.Sprintf("ip:%s", ipv4.String())
		}
		return fmt.Sprintf("ip:%s", parsedIP.String())
	}
	return fmt.Sprintf("ip:%s", ip)
}

// UserKey generates a key based on user ID
func (kg *KeyGenerator) UserKey(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// APIKey generates a key based on API key
func (kg *KeyGenerator) APIKey(apiKey string) string {
	return fmt.Sprintf("api:%s", apiKey)
}

// EndpointKey generates a key based on endpoint and IP
func (kg *KeyGenerator) EndpointKey(endpoint, ip string) string {
	return fmt.Sprintf("endpoint:%s:ip:%s", endpoint, kg.normalizeIP(ip))
}

// GlobalKey generates a global rate limit key
func (kg *KeyGenerator) GlobalKey(prefix string) string {
	return fmt.Sprintf("global:%s", prefix)
}

// CompositeKey generates a composite key from multiple components
func (kg *KeyGenerator) CompositeKey(components ...string) string {
	return strings.Join(components, ":")
}

// normalizeIP normalizes an IP address
func (kg *KeyGenerator) normalizeIP(ip string) string {
	if parsedIP := net.ParseIP(ip); parsedIP != nil {
		if ipv4 := parsedIP.To4(); ipv4 != nil {
			return ipv4.String()
		}
		return parsedIP.String()
	}
	return ip
}

// Middleware provides rate limiting middleware functionality
type Middleware struct {
	limiter      *RateLimiter
	keyGenerator *KeyGenerator
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(limiter *RateLimiter) *Middleware {
	return &Middleware{
		limiter:      limiter,
		keyGenerator: NewKeyGenerator(),
	}
}

// CheckIPRateLimit checks rate limit for an IP address
func (m *Middleware) CheckIPRateLimit(ctx context.Context, ip string) (bool, *Info, error) {
	key := m.keyGenerator.IPKey(ip)
	allowed, err := m.limiter.Allow(ctx, key)
	if err != nil {
		return false, nil, err
	}
	
	info, err := m.limiter.GetInfo(ctx, key)
	if err != nil {
		return allowed, nil, err
	}
	
	return allowed, info, nil
}

// CheckUserRateLimit checks rate limit for a user
func (m *Middleware) CheckUserRateLimit(ctx context.Context, userID string) (bool, *Info, error) {
	key := m.keyGenerator.UserKey(userID)
	allowed, err := m.limiter.Allow(ctx, key)
	if err != nil {
		return false, nil, err
	}
	
	info, err := m.limiter.GetInfo(ctx, key)
	if err != nil {
		return allowed, nil, err
	}
	
	return allowed, info, nil
}

// CheckEndpointRateLimit checks rate limit for an endpoint and IP combination
func (m *Middleware) CheckEndpointRateLimit(ctx context.Context, endpoint, ip string) (bool, *Info, error) {
	key := m.keyGenerator.EndpointKey(endpoint, ip)
	allowed, err := m.limiter.Allow(ctx, key)
	if err != nil {
		return false, nil, err
	}
	
	info, err := m.limiter.GetInfo(ctx, key)
	if err != nil {
		return allowed, nil, err
	}
	
	return allowed, info, nil
}


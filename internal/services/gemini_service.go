package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"meter-reading-backend/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// MeterReadingPrompt is the fixed instruction sent with every meter photo.
const MeterReadingPrompt = "Analyze the provided image of a water or gas meter. " +
	"Identify and extract the current consumption reading displayed on the meter. " +
	"Please return only the numerical value of the reading, without the unit of measurement. " +
	"Ensure the reading is accurate and corresponds to the displayed value on the meter."

// contentGenerator is the part of the genai client the service uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiService struct {
	models      contentGenerator
	model       string
	timeout     time.Duration
	retry       *RetryConfig
	cache       map[string]*CachedResponse
	cacheMutex  sync.RWMutex
	cacheTTL    time.Duration
	rateLimiter *rate.Limiter
}

type CachedResponse struct {
	Data      string
	ExpiresAt time.Time
}

type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func defaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

func NewGeminiService(ctx context.Context, cfg config.GeminiConfig) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	service := newGeminiService(client.Models, cfg)
	service.StartCacheCleanup(ctx)
	return service, nil
}

func newGeminiService(generator contentGenerator, cfg config.GeminiConfig) *GeminiService {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 15
	}
	return &GeminiService{
		models:      generator,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		retry:       defaultRetryConfig(),
		cache:       make(map[string]*CachedResponse),
		cacheTTL:    24 * time.Hour,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// ExtractReading asks the model for the reading shown in image. The answer is
// returned trimmed but otherwise unparsed.
func (g *GeminiService) ExtractReading(ctx context.Context, image []byte, mimeType string) (string, error) {
	cacheKey := g.generateDocumentCacheKey(image, MeterReadingPrompt)
	if cached := g.getFromCacheByKey(cacheKey); cached != "" {
		config.Logger.Info("Serving meter reading from cache", zap.String("mimeType", mimeType))
		return cached, nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.rateLimiter.Wait(ctx); err != nil {
		config.Logger.Error("Rate limit wait failed",
			zap.String("type", "image"),
			zap.String("mimeType", mimeType),
			zap.Error(err),
		)
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	result, err := g.withRetry(ctx, func(ctx context.Context) (string, error) {
		return g.processImage(ctx, image, mimeType, MeterReadingPrompt)
	})
	if err != nil {
		return "", err
	}

	result = strings.TrimSpace(result)
	if result == "" {
		return "", errors.New("gemini returned an empty reading")
	}

	g.cacheResponseByKey(cacheKey, result)
	return result, nil
}

func (g *GeminiService) withRetry(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	delay := g.retry.InitialDelay

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := call(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !g.isRetryableError(err) {
			break
		}

		delay = time.Duration(float64(delay) * g.retry.BackoffFactor)
		if delay > g.retry.MaxDelay {
			delay = g.retry.MaxDelay
		}
	}

	return "", fmt.Errorf("gemini request failed: %w", lastErr)
}

func (g *GeminiService) processImage(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	config.Logger.Info("Sending meter image to Gemini",
		zap.String("model", g.model),
		zap.String("mimeType", mimeType),
		zap.Int("fileSize", len(image)),
	)

	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     image,
		}},
	}
	contents := []*genai.Content{
		{Parts: parts},
	}

	startTime := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		config.Logger.Error("Gemini API request failed",
			zap.String("model", g.model),
			zap.String("mimeType", mimeType),
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)),
		)
		return "", err
	}

	responseText := resp.Text()

	config.Logger.Info("Received meter reading from Gemini",
		zap.String("model", g.model),
		zap.String("response", responseText),
		zap.Duration("duration", time.Since(startTime)),
	)

	return responseText, nil
}

func (g *GeminiService) isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"rate limit",
		"quota exceeded",
		"resource_exhausted",
		"temporary",
		"timeout",
		"connection",
		"503",
		"429",
		"internal error",
		"service unavailable",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}

func (g *GeminiService) getFromCacheByKey(key string) string {
	g.cacheMutex.RLock()
	cached, exists := g.cache[key]
	g.cacheMutex.RUnlock()

	if !exists {
		return ""
	}
	if time.Now().Before(cached.ExpiresAt) {
		return cached.Data
	}

	g.cacheMutex.Lock()
	delete(g.cache, key)
	g.cacheMutex.Unlock()
	return ""
}

func (g *GeminiService) cacheResponseByKey(key, response string) {
	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()

	g.cache[key] = &CachedResponse{
		Data:      response,
		ExpiresAt: time.Now().Add(g.cacheTTL),
	}
}

func (g *GeminiService) generateDocumentCacheKey(fileBytes []byte, prompt string) string {
	fileHash := md5.Sum(fileBytes)
	promptHash := md5.Sum([]byte(prompt))
	combined := append(fileHash[:], promptHash[:]...)
	finalHash := md5.Sum(combined)
	return hex.EncodeToString(finalHash[:])
}

// StartCacheCleanup evicts expired entries every hour until ctx is done.
func (g *GeminiService) StartCacheCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.cleanupExpiredCache()
			}
		}
	}()
}

func (g *GeminiService) cleanupExpiredCache() {
	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()

	now := time.Now()
	for key, cached := range g.cache {
		if now.After(cached.ExpiresAt) {
			delete(g.cache, key)
		}
	}
}

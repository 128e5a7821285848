package probe

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/models"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 5 << 20

// Listing pages do not always carry schema.org microdata, so the probe
// falls back to scanning the raw markup for the embedded counters.
var (
	reviewCountPattern = regexp.MustCompile(`"reviewCount"\s*[:=]\s*"?(\d+)`)
	ratingPattern      = regexp.MustCompile(`"ratingValue"\s*[:=]\s*"?([\d.,]+)`)
	titleSuffixPattern = regexp.MustCompile(`\s*[—–-]\s*Яндекс[^—–-]*$`)
)

// Service is the quick probe: one rate-limited GET against the listing's
// reviews page to pull the organization name, rating and expected review
// count before the worker produces its first meta artifact. Every failure
// path returns nil; task creation never blocks on the probe.
type Service struct {
	config  *common.ProbeConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewService creates a new probe service
func NewService(config *common.ProbeConfig, logger arbor.ILogger) *Service {
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Every(config.RateLimit)
	}
	return &Service{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Fetch probes the listing and returns a metadata snapshot, or nil when the
// page could not be fetched or parsed
func (s *Service) Fetch(ctx context.Context, url string) *models.TargetMeta {
	url = common.NormalizeReviewsURL(url)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", url).Msg("Probe request build failed")
		return nil
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", url).Msg("Probe fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("Probe got non-200 response")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		s.logger.Debug().Err(err).Str("url", url).Msg("Probe read failed")
		return nil
	}

	meta := s.parse(body)
	if meta == nil {
		s.logger.Debug().Str("url", url).Msg("Probe found no listing metadata")
	}
	return meta
}

// parse extracts the snapshot from microdata first, raw markup second
func (s *Service) parse(body []byte) *models.TargetMeta {
	meta := &models.TargetMeta{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		meta.Name = s.extractName(doc)
		if content, ok := doc.Find(`meta[itemprop="ratingValue"]`).First().Attr("content"); ok {
			meta.Rating = parseRating(content)
		}
		if content, ok := doc.Find(`meta[itemprop="reviewCount"]`).First().Attr("content"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(content)); err == nil {
				meta.ReviewCount = n
			}
		}
	}

	raw := string(body)
	if meta.ReviewCount == 0 {
		if m := reviewCountPattern.FindStringSubmatch(raw); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				meta.ReviewCount = n
			}
		}
	}
	if meta.Rating == 0 {
		if m := ratingPattern.FindStringSubmatch(raw); m != nil {
			meta.Rating = parseRating(m[1])
		}
	}

	if meta.Name == "" && meta.ReviewCount == 0 && meta.Rating == 0 {
		return nil
	}
	return meta
}

func (s *Service) extractName(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		name := titleSuffixPattern.ReplaceAllString(strings.TrimSpace(content), "")
		if name != "" {
			return name
		}
	}
	if name, ok := doc.Find(`meta[itemprop="name"]`).First().Attr("content"); ok {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// parseRating handles both dot and comma decimal separators
func parseRating(value string) float64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	rating, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return rating
}
